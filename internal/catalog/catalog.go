// Package catalog is the read-only registry of exercise units.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog is immutable after New returns. Units are returned by value; their
// slices are shared and must not be modified by callers.
type Catalog struct {
	Name string

	units      []Unit
	byID       map[string]int
	dependents map[string][]string
	order      []string
}

// New validates the units and their tests and indexes them. Ordinals are assigned
// from slice position.
func New(name string, units []Unit) (*Catalog, error) {
	c := &Catalog{
		Name:       name,
		units:      make([]Unit, len(units)),
		byID:       make(map[string]int, len(units)),
		dependents: make(map[string][]string),
	}
	copy(c.units, units)
	for i := range c.units {
		u := &c.units[i]
		u.Ordinal = i
		if _, ok := c.byID[u.UnitID]; ok {
			return nil, &Error{Kind: ErrDuplicateID, UnitID: u.UnitID, Path: u.Dir}
		}
		c.byID[u.UnitID] = i
		if len(u.Tests) == 0 {
			return nil, &Error{Kind: ErrNoTests, UnitID: u.UnitID, Path: u.Dir}
		}
		if err := validateTests(u.Tests); err != nil {
			return nil, &Error{Kind: ErrMalformed, UnitID: u.UnitID, Path: u.Dir, Err: err}
		}
	}
	for _, u := range c.units {
		for _, dep := range u.DependsOn {
			if _, ok := c.byID[dep]; !ok {
				return nil, &Error{Kind: ErrUnknownDependency, UnitID: u.UnitID, Path: u.Dir, Err: fmt.Errorf("depends_on %q", dep)}
			}
			c.dependents[dep] = append(c.dependents[dep], u.UnitID)
		}
	}
	order, err := c.topoSort()
	if err != nil {
		return nil, err
	}
	c.order = order
	return c, nil
}

// topoSort is Kahn's algorithm; roots and freed units are queued in ordinal
// order. Any unit left with a positive in-degree sits on a cycle.
func (c *Catalog) topoSort() ([]string, error) {
	inDegree := make(map[string]int, len(c.units))
	for _, u := range c.units {
		inDegree[u.UnitID] = len(dedupe(u.DependsOn))
	}

	var queue []string
	for _, u := range c.units {
		if inDegree[u.UnitID] == 0 {
			queue = append(queue, u.UnitID)
		}
	}

	order := make([]string, 0, len(c.units))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		next := dedupe(c.dependents[id])
		sort.Slice(next, func(i, j int) bool { return c.byID[next[i]] < c.byID[next[j]] })
		for _, depID := range next {
			inDegree[depID]--
			if inDegree[depID] == 0 {
				queue = append(queue, depID)
			}
		}
	}

	if len(order) < len(c.units) {
		var cycle []string
		for _, u := range c.units {
			if inDegree[u.UnitID] > 0 {
				cycle = append(cycle, u.UnitID)
			}
		}
		return nil, &Error{Kind: ErrCyclicDependency, Err: fmt.Errorf("involving units: %s", strings.Join(cycle, ", "))}
	}
	return order, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (c *Catalog) Len() int { return len(c.units) }

func (c *Catalog) Units() []Unit {
	return append([]Unit(nil), c.units...)
}

func (c *Catalog) ByIndex(i int) (Unit, bool) {
	if i < 0 || i >= len(c.units) {
		return Unit{}, false
	}
	return c.units[i], true
}

func (c *Catalog) ByID(id string) (Unit, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Unit{}, false
	}
	return c.units[i], true
}

func (c *Catalog) IndexOf(id string) (int, bool) {
	i, ok := c.byID[id]
	return i, ok
}

// Dependents lists the units that name id in depends_on, in catalog order.
func (c *Catalog) Dependents(id string) []string {
	return dedupe(c.dependents[id])
}

// DependenciesOf returns every unit id reachable through depends_on from id,
// not including id itself, in topological order.
func (c *Catalog) DependenciesOf(id string) []string {
	u, ok := c.ByID(id)
	if !ok {
		return nil
	}
	reach := map[string]struct{}{}
	stack := append([]string(nil), u.DependsOn...)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := reach[top]; ok {
			continue
		}
		reach[top] = struct{}{}
		dep, _ := c.ByID(top)
		stack = append(stack, dep.DependsOn...)
	}
	out := make([]string, 0, len(reach))
	for _, oid := range c.order {
		if _, ok := reach[oid]; ok {
			out = append(out, oid)
		}
	}
	return out
}

// Order is a topological order of unit ids.
func (c *Catalog) Order() []string {
	return append([]string(nil), c.order...)
}
