package chargers

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var builtinCatalogue []byte

type catalogueFile struct {
	Chargers []Spec `yaml:"chargers"`
}

// Registry is an immutable, indexed set of charger specifications. Every
// accessor returns copies, so callers cannot alter the shared entries.
type Registry struct {
	order []string
	byID  map[string]Spec
}

// NewRegistry validates specs and indexes them by ID in the given order.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{byID: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		if err := s.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate charger id %q", s.ID)
		}
		r.byID[s.ID] = s.clone()
		r.order = append(r.order, s.ID)
	}
	return r, nil
}

var defaultRegistry = mustLoadBuiltin()

func mustLoadBuiltin() *Registry {
	specs, err := LoadCatalogue(bytes.NewReader(builtinCatalogue))
	if err != nil {
		panic(fmt.Sprintf("builtin charger catalogue: %v", err))
	}
	reg, err := NewRegistry(specs...)
	if err != nil {
		panic(fmt.Sprintf("builtin charger catalogue: %v", err))
	}
	return reg
}

// Default returns the registry built from the embedded catalogue.
func Default() *Registry {
	return defaultRegistry
}

// LoadCatalogue decodes a YAML catalogue document.
func LoadCatalogue(r io.Reader) ([]Spec, error) {
	var doc catalogueFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode charger catalogue: %w", err)
	}
	return doc.Chargers, nil
}

// LoadCatalogueFile reads a YAML catalogue from disk.
func LoadCatalogueFile(path string) ([]Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open charger catalogue: %w", err)
	}
	defer f.Close()
	specs, err := LoadCatalogue(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return specs, nil
}

// With returns a new registry holding r's entries followed by extra.
func (r *Registry) With(extra ...Spec) (*Registry, error) {
	all := make([]Spec, 0, r.Len()+len(extra))
	all = append(all, r.All()...)
	all = append(all, extra...)
	return NewRegistry(all...)
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Get returns a copy of the entry with the given ID.
func (r *Registry) Get(id string) (Spec, bool) {
	if r == nil {
		return Spec{}, false
	}
	s, ok := r.byID[id]
	if !ok {
		return Spec{}, false
	}
	return s.clone(), true
}

// Lookup is Get returning ErrUnknownCharger for a missing ID.
func (r *Registry) Lookup(id string) (Spec, error) {
	s, ok := r.Get(id)
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownCharger, id)
	}
	return s, nil
}

// IDs returns entry IDs in catalogue order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// All returns copies of every entry in catalogue order.
func (r *Registry) All() []Spec {
	if r == nil {
		return nil
	}
	out := make([]Spec, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].clone())
	}
	return out
}

// ByMake returns entries whose make matches case-insensitively.
func (r *Registry) ByMake(name string) []Spec {
	want := strings.ToLower(strings.TrimSpace(name))
	var out []Spec
	for _, s := range r.All() {
		if strings.ToLower(s.Make) == want {
			out = append(out, s)
		}
	}
	return out
}

// Makes returns the distinct manufacturer names, sorted.
func (r *Registry) Makes() []string {
	seen := make(map[string]struct{})
	for _, s := range r.All() {
		seen[s.Make] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
