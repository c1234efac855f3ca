package topology

import (
	"fmt"
	"io"
	"sort"

	"github.com/cockroachdb/errors"
)

var (
	ErrDuplicateResource = errors.New("duplicate resource")
	ErrCycle             = errors.New("dependency cycle")
)

// Graph is a set of resources whose edges are the references between them.
// A resource depends on every resource it references.
type Graph struct {
	order     []string
	resources map[string]Resource
}

func New() *Graph {
	return &Graph{
		resources: make(map[string]Resource),
	}
}

func (g *Graph) Add(r Resource) error {
	if r.Name == "" {
		return errors.Newf("%s resource without a name", r.Kind())
	}
	if _, ok := g.resources[r.Name]; ok {
		return errors.Wrapf(ErrDuplicateResource, "%q", r.Name)
	}
	g.resources[r.Name] = r
	g.order = append(g.order, r.Name)
	return nil
}

func (g *Graph) Resource(name string) (Resource, bool) {
	r, ok := g.resources[name]
	return r, ok
}

// Resources returns every resource in declaration order.
func (g *Graph) Resources() []Resource {
	var resources []Resource
	for _, name := range g.order {
		resources = append(resources, g.resources[name])
	}
	return resources
}

// Of returns the resources of one kind in declaration order.
func (g *Graph) Of(kind Kind) []Resource {
	var resources []Resource
	for _, r := range g.Resources() {
		if r.Kind() == kind {
			resources = append(resources, r)
		}
	}
	return resources
}

// DependsOn lists the distinct names r references, in reference order.
// Names not present in the graph are skipped.
func (g *Graph) DependsOn(name string) []string {
	r, ok := g.resources[name]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var deps []string
	for _, ref := range r.Spec.Refs() {
		if _, ok := g.resources[ref.Name]; !ok || seen[ref.Name] {
			continue
		}
		seen[ref.Name] = true
		deps = append(deps, ref.Name)
	}
	return deps
}

// Dependents lists the resources referencing name, in declaration order.
func (g *Graph) Dependents(name string) []string {
	var dependents []string
	for _, other := range g.order {
		for _, dep := range g.DependsOn(other) {
			if dep == name {
				dependents = append(dependents, other)
				break
			}
		}
	}
	return dependents
}

// Waves groups resources into levels: every resource sits one level after the deepest
// resource it depends on, so members of a wave can be created concurrently.
// Names within a wave are sorted.
func (g *Graph) Waves() ([][]string, error) {
	remaining := make(map[string]int, len(g.order))
	for _, name := range g.order {
		remaining[name] = len(g.DependsOn(name))
	}

	var waves [][]string
	placed := 0
	for placed < len(g.order) {
		var wave []string
		for _, name := range g.order {
			if n, ok := remaining[name]; ok && n == 0 {
				wave = append(wave, name)
			}
		}
		if len(wave) == 0 {
			var stuck []string
			for name := range remaining {
				stuck = append(stuck, name)
			}
			sort.Strings(stuck)
			return nil, errors.Wrapf(ErrCycle, "between %v", stuck)
		}
		for _, name := range wave {
			delete(remaining, name)
			for _, dependent := range g.Dependents(name) {
				remaining[dependent]--
			}
		}
		sort.Strings(wave)
		waves = append(waves, wave)
		placed += len(wave)
	}
	return waves, nil
}

// Order is a creation order honouring every dependency.
func (g *Graph) Order() ([]string, error) {
	waves, err := g.Waves()
	if err != nil {
		return nil, err
	}
	var order []string
	for _, wave := range waves {
		order = append(order, wave...)
	}
	return order, nil
}

// ExportRef is an export together with the resource owning it.
type ExportRef struct {
	Resource string
	Export
}

// Exports lists every stack output in declaration order.
func (g *Graph) Exports() []ExportRef {
	var exports []ExportRef
	for _, r := range g.Resources() {
		for _, e := range r.Exports {
			exports = append(exports, ExportRef{Resource: r.Name, Export: e})
		}
	}
	return exports
}

// WriteDot renders the graph in Graphviz format, edges pointing at dependencies.
func (g *Graph) WriteDot(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "digraph topology {"); err != nil {
		return err
	}
	for _, r := range g.Resources() {
		if _, err := fmt.Fprintf(w, "  %q [label=\"%s\\n(%s)\"];\n", r.Name, r.Name, r.Kind()); err != nil {
			return err
		}
	}
	for _, name := range g.order {
		for _, dep := range g.DependsOn(name) {
			if _, err := fmt.Fprintf(w, "  %q -> %q;\n", name, dep); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}
