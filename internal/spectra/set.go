package spectra

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Set is an ordered collection of named curves, persisted as JSON.
type Set struct {
	Curves []*Binned `json:"curves"`

	index map[string]*Binned
}

func NewSet() *Set {
	return &Set{index: make(map[string]*Binned)}
}

// Add stores b, replacing any curve with the same name.
func (s *Set) Add(b *Binned) {
	if s.index == nil {
		s.reindex()
	}
	if old, ok := s.index[b.Name]; ok {
		for i, c := range s.Curves {
			if c == old {
				s.Curves[i] = b
				break
			}
		}
	} else {
		s.Curves = append(s.Curves, b)
	}
	s.index[b.Name] = b
}

func (s *Set) Get(name string) (*Binned, bool) {
	if s.index == nil {
		s.reindex()
	}
	b, ok := s.index[name]
	return b, ok
}

// MustGet fetches a curve that is required to be present.
func (s *Set) MustGet(name string) (*Binned, error) {
	b, ok := s.Get(name)
	if !ok {
		return nil, errors.Newf("spectra: missing curve %q", name)
	}
	return b, nil
}

func (s *Set) reindex() {
	s.index = make(map[string]*Binned, len(s.Curves))
	for _, c := range s.Curves {
		s.index[c.Name] = c
	}
}

// SaveFile writes the set as indented JSON, creating parent directories.
func (s *Set) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "spectra: mkdir")
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "spectra: marshal")
	}
	return errors.Wrapf(os.WriteFile(path, raw, 0o644), "spectra: write %s", path)
}

// LoadSet reads a curve set from path.
func LoadSet(path string) (*Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "spectra: read")
	}
	var s Set
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrapf(err, "spectra: parse %s", path)
	}
	s.reindex()
	return &s, nil
}
