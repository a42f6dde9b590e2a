// Package histio persists named histogram sets as a flat archive of YODA
// blocks. Each entry is a header line naming the histogram followed by its
// YODA serialization, so the files stay diffable and greppable.
package histio

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go-hep.org/x/hep/hbook"
)

const headerPrefix = "# hist "

// Archive is an ordered set of named 1D histograms.
type Archive struct {
	names []string
	hists map[string]*hbook.H1D
}

func New() *Archive {
	return &Archive{hists: make(map[string]*hbook.H1D)}
}

// Put stores h under name, replacing any previous entry.
func (a *Archive) Put(name string, h *hbook.H1D) {
	if _, dup := a.hists[name]; !dup {
		a.names = append(a.names, name)
	}
	a.hists[name] = h
}

func (a *Archive) Get(name string) (*hbook.H1D, bool) {
	h, ok := a.hists[name]
	return h, ok
}

// MustGet fetches a histogram that is required to be present.
func (a *Archive) MustGet(name string) (*hbook.H1D, error) {
	h, ok := a.hists[name]
	if !ok {
		return nil, errors.Newf("histio: missing histogram %q", name)
	}
	return h, nil
}

// Names lists the entries in insertion order.
func (a *Archive) Names() []string {
	return append([]string(nil), a.names...)
}

func (a *Archive) Len() int { return len(a.names) }

// Write serializes the archive.
func (a *Archive) Write(w io.Writer) error {
	for _, name := range a.names {
		if _, err := io.WriteString(w, headerPrefix+name+"\n"); err != nil {
			return errors.Wrap(err, "histio: write header")
		}
		raw, err := a.hists[name].MarshalYODA()
		if err != nil {
			return errors.Wrapf(err, "histio: marshal %q", name)
		}
		if _, err := w.Write(raw); err != nil {
			return errors.Wrapf(err, "histio: write %q", name)
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return errors.Wrap(err, "histio: write separator")
		}
	}
	return nil
}

// WriteFile writes the archive to path, creating parent directories.
func (a *Archive) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "histio: mkdir")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "histio: create")
	}
	bw := bufio.NewWriter(f)
	if err := a.Write(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return errors.Wrap(err, "histio: flush")
	}
	return errors.Wrap(f.Close(), "histio: close")
}

// Read parses an archive.
func Read(r io.Reader) (*Archive, error) {
	a := New()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<26)

	var (
		name string
		body bytes.Buffer
	)
	flush := func() error {
		if name == "" {
			return nil
		}
		h := hbook.NewH1D(1, 0, 1)
		if err := h.UnmarshalYODA(body.Bytes()); err != nil {
			return errors.Wrapf(err, "histio: unmarshal %q", name)
		}
		a.Put(name, h)
		name = ""
		body.Reset()
		return nil
	}

	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, headerPrefix) {
			if err := flush(); err != nil {
				return nil, err
			}
			name = strings.TrimSpace(strings.TrimPrefix(line, headerPrefix))
			if name == "" {
				return nil, errors.New("histio: empty histogram name")
			}
			continue
		}
		if name != "" {
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "histio: scan")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return a, nil
}

// ReadFile parses the archive at path.
func ReadFile(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "histio: open")
	}
	defer f.Close()
	a, err := Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "histio: %s", path)
	}
	return a, nil
}
