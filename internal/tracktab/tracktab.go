// Package tracktab reads and writes nuclei track tables as CSV, optionally
// gzip-compressed. The column order is fixed; MC columns are present in
// every file and left zero for data.
package tracktab

import (
	"compress/gzip"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/decibelcooper/he3spectra/internal/nuclei"
)

var columns = []string{
	"fPt", "fEta", "fPhi",
	"fTPCInnerParam", "fTPCsignal", "fBeta",
	"fDCAxy", "fDCAz",
	"fTPCnCls", "fITSclsMap", "fFlags",
	"fgPt", "fgEta", "fgPhi", "fPDGcode",
}

// Reader streams tracks from a CSV table.
type Reader struct {
	f   *os.File
	gz  *gzip.Reader
	csv *csv.Reader
}

// Open opens a track table; a .gz suffix selects gzip decompression. The
// header row is read and checked immediately.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "tracktab: open")
	}
	r := &Reader{f: f}

	var src io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "tracktab: gzip %s", path)
		}
		r.gz = gz
		src = gz
	}
	r.csv = csv.NewReader(src)
	r.csv.ReuseRecord = true

	header, err := r.csv.Read()
	if err != nil {
		r.Close()
		return nil, errors.Wrapf(err, "tracktab: header of %s", path)
	}
	if len(header) != len(columns) {
		r.Close()
		return nil, errors.Newf("tracktab: %s: got %d columns, want %d", path, len(header), len(columns))
	}
	for i, name := range columns {
		if header[i] != name {
			r.Close()
			return nil, errors.Newf("tracktab: %s: column %d is %q, want %q", path, i, header[i], name)
		}
	}
	return r, nil
}

// Next reads one track into t. It returns io.EOF at the end of the table.
func (r *Reader) Next(t *nuclei.Track) error {
	rec, err := r.csv.Read()
	if err != nil {
		return err
	}
	fields := [8]*float64{
		&t.SignedPt, &t.Eta, &t.Phi,
		&t.TPCInnerParam, &t.TPCSignal, &t.Beta,
		&t.DCAxy, &t.DCAz,
	}
	for i, dst := range fields {
		v, err := strconv.ParseFloat(rec[i], 64)
		if err != nil {
			return errors.Wrapf(err, "tracktab: column %s", columns[i])
		}
		*dst = v
	}
	ints := [3]struct {
		idx int
		set func(int64)
	}{
		{8, func(v int64) { t.TPCnCls = int(v) }},
		{9, func(v int64) { t.ITSClsMap = uint8(v) }},
		{10, func(v int64) { t.Flags = uint32(v) }},
	}
	for _, c := range ints {
		v, err := strconv.ParseInt(rec[c.idx], 10, 64)
		if err != nil {
			return errors.Wrapf(err, "tracktab: column %s", columns[c.idx])
		}
		c.set(v)
	}
	mc := [3]*float64{&t.GenPt, &t.GenEta, &t.GenPhi}
	for i, dst := range mc {
		v, err := strconv.ParseFloat(rec[11+i], 64)
		if err != nil {
			return errors.Wrapf(err, "tracktab: column %s", columns[11+i])
		}
		*dst = v
	}
	pdg, err := strconv.ParseInt(rec[14], 10, 64)
	if err != nil {
		return errors.Wrap(err, "tracktab: column fPDGcode")
	}
	t.PDGCode = int(pdg)
	return nil
}

func (r *Reader) Close() error {
	if r.gz != nil {
		r.gz.Close()
	}
	return r.f.Close()
}

// Each streams the whole table through fn, stopping on the first error.
func Each(path string, fn func(*nuclei.Track) error) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	var t nuclei.Track
	for {
		err := r.Next(&t)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(&t); err != nil {
			return err
		}
	}
}

// Writer appends tracks to a CSV table.
type Writer struct {
	f   *os.File
	gz  *gzip.Writer
	csv *csv.Writer
	row []string
}

// Create creates a track table at path, writing the header row; a .gz
// suffix selects gzip compression.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "tracktab: mkdir")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "tracktab: create")
	}
	w := &Writer{f: f, row: make([]string, len(columns))}

	var dst io.Writer = f
	if strings.HasSuffix(path, ".gz") {
		w.gz = gzip.NewWriter(f)
		dst = w.gz
	}
	w.csv = csv.NewWriter(dst)
	if err := w.csv.Write(columns); err != nil {
		w.Close()
		return nil, errors.Wrap(err, "tracktab: header")
	}
	return w, nil
}

func (w *Writer) Write(t *nuclei.Track) error {
	w.row[0] = formatFloat(t.SignedPt)
	w.row[1] = formatFloat(t.Eta)
	w.row[2] = formatFloat(t.Phi)
	w.row[3] = formatFloat(t.TPCInnerParam)
	w.row[4] = formatFloat(t.TPCSignal)
	w.row[5] = formatFloat(t.Beta)
	w.row[6] = formatFloat(t.DCAxy)
	w.row[7] = formatFloat(t.DCAz)
	w.row[8] = strconv.Itoa(t.TPCnCls)
	w.row[9] = strconv.Itoa(int(t.ITSClsMap))
	w.row[10] = strconv.FormatUint(uint64(t.Flags), 10)
	w.row[11] = formatFloat(t.GenPt)
	w.row[12] = formatFloat(t.GenEta)
	w.row[13] = formatFloat(t.GenPhi)
	w.row[14] = strconv.Itoa(t.PDGCode)
	return w.csv.Write(w.row)
}

func (w *Writer) Close() error {
	w.csv.Flush()
	err := w.csv.Error()
	if w.gz != nil {
		if cerr := w.gz.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
