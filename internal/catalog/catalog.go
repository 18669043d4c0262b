// Package catalog holds the immutable set of scheme definitions shared by all
// requests. A Catalog is built once at startup and never mutated afterwards,
// so it is safe for concurrent readers without synchronization.
package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ahrav/go-rubric/internal/domain"
)

// Catalog is a read-only lookup from scheme ID to definition.
type Catalog struct {
	schemes map[string]*domain.SchemeDefinition
	ids     []string
}

// New validates the definitions and builds a catalog.
// Duplicate IDs, invalid definitions and dependency cycles are errors.
func New(defs ...domain.SchemeDefinition) (*Catalog, error) {
	c := &Catalog{schemes: make(map[string]*domain.SchemeDefinition, len(defs))}
	for i := range defs {
		def := defs[i]
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.schemes[def.ID]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateScheme, def.ID)
		}
		c.schemes[def.ID] = &def
		c.ids = append(c.ids, def.ID)
	}
	slices.Sort(c.ids)
	if cycle := c.findCycle(); cycle != nil {
		return nil, fmt.Errorf("%w: dependency cycle %s", domain.ErrInvalidScheme, strings.Join(cycle, " -> "))
	}
	return c, nil
}

// findCycle returns the first dependency cycle among derived schemes, or nil.
func (c *Catalog) findCycle() []string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(c.ids))
	var path []string

	var visit func(id string) []string
	visit = func(id string) []string {
		switch state[id] {
		case active:
			start := slices.Index(path, id)
			return append(slices.Clone(path[start:]), id)
		case done:
			return nil
		}
		state[id] = active
		path = append(path, id)
		for _, dep := range c.schemes[id].Dependencies {
			if _, ok := c.schemes[dep]; !ok {
				continue
			}
			if cycle := visit(dep); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return nil
	}

	for _, id := range c.ids {
		if cycle := visit(id); cycle != nil {
			return cycle
		}
	}
	return nil
}

// Get returns the definition for id. Callers must not modify it.
func (c *Catalog) Get(id string) (*domain.SchemeDefinition, bool) {
	if c == nil {
		return nil, false
	}
	s, ok := c.schemes[id]
	return s, ok
}

// Lookup returns the definition or ErrSchemeNotFound.
func (c *Catalog) Lookup(id string) (*domain.SchemeDefinition, error) {
	s, ok := c.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSchemeNotFound, id)
	}
	return s, nil
}

// Len reports the number of schemes.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ids)
}

// IDs returns the scheme IDs in sorted order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	return slices.Clone(c.ids)
}

// Infos lists every scheme's public view, sorted by ID.
func (c *Catalog) Infos() []domain.SchemeInfo {
	out := make([]domain.SchemeInfo, 0, c.Len())
	for _, id := range c.IDs() {
		out = append(out, c.schemes[id].Info())
	}
	return out
}

// Unknown returns the IDs not present in the catalog, in input order.
func (c *Catalog) Unknown(ids []string) []string {
	var missing []string
	for _, id := range ids {
		if _, ok := c.Get(id); !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// DanglingDependencies maps each derived scheme to dependency IDs that do not
// resolve. They are skipped at evaluation time; the loader logs them.
func (c *Catalog) DanglingDependencies() map[string][]string {
	out := make(map[string][]string)
	for _, id := range c.IDs() {
		s := c.schemes[id]
		if s.Kind != domain.KindDerived {
			continue
		}
		if missing := c.Unknown(s.Dependencies); len(missing) > 0 {
			out[id] = missing
		}
	}
	return out
}

// String summarizes the catalog for logs.
func (c *Catalog) String() string {
	return fmt.Sprintf("catalog(%d schemes: %s)", c.Len(), strings.Join(c.IDs(), ", "))
}
