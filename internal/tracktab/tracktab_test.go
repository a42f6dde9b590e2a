package tracktab

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decibelcooper/he3spectra/internal/nuclei"
)

func sampleTracks() []nuclei.Track {
	return []nuclei.Track{
		{
			SignedPt: 1.25, Eta: -0.4, Phi: 2.1,
			TPCInnerParam: 1.3, TPCSignal: 540.5, Beta: 0.82,
			DCAxy: 0.01, DCAz: -0.02,
			TPCnCls: 125, ITSClsMap: 0x7f, Flags: nuclei.FlagHe3 | nuclei.FlagHasTOF,
		},
		{
			SignedPt: -2.0, Eta: 0.1, Phi: -1.0,
			TPCInnerParam: 2.2, TPCSignal: 310.0, Beta: 0,
			DCAxy: -0.05, DCAz: 0.003,
			TPCnCls: 131, ITSClsMap: 0x3f, Flags: nuclei.FlagHe3 | nuclei.FlagIsPrimary,
			GenPt: 2.1, GenEta: 0.12, GenPhi: -1.05, PDGCode: -nuclei.PDGHe3,
		},
	}
}

func roundTrip(t *testing.T, path string) {
	t.Helper()
	in := sampleTracks()

	w, err := Create(path)
	require.NoError(t, err)
	for i := range in {
		require.NoError(t, w.Write(&in[i]))
	}
	require.NoError(t, w.Close())

	var out []nuclei.Track
	err = Each(path, func(trk *nuclei.Track) error {
		out = append(out, *trk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRoundTrip(t *testing.T) {
	roundTrip(t, filepath.Join(t.TempDir(), "tracks.csv"))
}

func TestRoundTripGzip(t *testing.T) {
	roundTrip(t, filepath.Join(t.TempDir(), "tracks.csv.gz"))
}

func TestReaderNextEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.csv")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	var trk nuclei.Track
	assert.Equal(t, io.EOF, r.Next(&trk))
}

func TestOpenRejectsBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c\n1,2,3\n"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
