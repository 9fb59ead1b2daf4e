package satellite

import (
	"fmt"
	"sort"
)

// Satellite is a resolved registry entry.
type Satellite struct {
	Definition Definition
	Client     Client
}

// Registry maps a discipline to its satellite. It is filled once by
// NewRegistry and never modified afterwards, so lookups need no locking.
type Registry struct {
	entries map[string]Satellite
}

// NewRegistry validates defs and builds one client per definition.
func NewRegistry(defs []Definition, newClient func(Definition) (Client, error)) (*Registry, error) {
	if newClient == nil {
		panic("client factory is mandatory")
	}
	entries := make(map[string]Satellite, len(defs))
	for _, d := range defs {
		if d.Disciplina == "" {
			return nil, fmt.Errorf("satellite %q has no disciplina", d.Name)
		}
		if d.BaseURL == "" {
			return nil, fmt.Errorf("satellite %q has no base url", d.Disciplina)
		}
		if d.Name == "" {
			d.Name = d.Disciplina
		}
		if _, dup := entries[d.Disciplina]; dup {
			return nil, fmt.Errorf("satellite %q registered twice", d.Disciplina)
		}
		c, err := newClient(d)
		if err != nil {
			return nil, fmt.Errorf("building client for satellite %q: %w", d.Disciplina, err)
		}
		entries[d.Disciplina] = Satellite{Definition: d, Client: c}
	}
	return &Registry{entries: entries}, nil
}

// Resolve looks disciplina up with an exact, case sensitive match. There is
// no fallback satellite.
func (r *Registry) Resolve(disciplina string) (Satellite, bool) {
	s, ok := r.entries[disciplina]
	return s, ok
}

// Disciplines returns the registered disciplines in lexical order.
func (r *Registry) Disciplines() []string {
	out := make([]string, 0, len(r.entries))
	for d := range r.entries {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Definitions returns the registered definitions in discipline order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.entries))
	for _, d := range r.Disciplines() {
		out = append(out, r.entries[d].Definition)
	}
	return out
}
