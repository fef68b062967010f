// Package atlas is a reference Atlas: a small, self-contained in-memory dataset of tagged
// points, lines, areas and relations, with the sub-atlas, statistics and delta operations
// the generation pipeline relies on.
package atlas

import (
	"sort"

	"github.com/go-sif/atlasgen"
	"github.com/paulmach/orb"
)

// Atlas is an immutable collection of entities, sorted by id
type Atlas struct {
	name     string
	entities []*Entity
	index    map[int64]*Entity
}

// New produces an Atlas. Entities sharing an id are deduplicated, the last one winning.
func New(name string, entities ...*Entity) *Atlas {
	index := make(map[int64]*Entity, len(entities))
	for _, e := range entities {
		index[e.ID] = e
	}
	sorted := make([]*Entity, 0, len(index))
	for _, e := range index {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	return &Atlas{name: name, entities: sorted, index: index}
}

// Name returns the name of this Atlas
func (a *Atlas) Name() string {
	return a.name
}

// Len returns the number of entities within this Atlas
func (a *Atlas) Len() int {
	return len(a.entities)
}

// Entities returns the entities of this Atlas, sorted by id. The result must not be modified.
func (a *Atlas) Entities() []*Entity {
	return a.entities
}

// Entity returns the entity with the given id
func (a *Atlas) Entity(id int64) (*Entity, bool) {
	e, ok := a.index[id]
	return e, ok
}

// WithName returns a copy of this Atlas under a different name
func (a *Atlas) WithName(name string) *Atlas {
	return &Atlas{name: name, entities: a.entities, index: a.index}
}

// Bound returns the extent of every located entity in this Atlas
func (a *Atlas) Bound() orb.Bound {
	var bound orb.Bound
	first := true
	for _, e := range a.entities {
		if len(e.Nodes) == 0 {
			continue
		}
		if first {
			bound = e.Bound()
			first = false
			continue
		}
		bound = bound.Union(e.Bound())
	}
	return bound
}

// Equal returns true iff both atlases contain identical entities
func (a *Atlas) Equal(other *Atlas) bool {
	if a.Len() != other.Len() {
		return false
	}
	for i, e := range a.entities {
		if !equalEntities(e, other.entities[i]) {
			return false
		}
	}
	return true
}

// SubAtlas selects the entities matching a predicate:
//   - HardCut keeps matching entities only
//   - SilkCut also keeps the members of matching relations, recursively
//   - SoftCut also keeps the relations which reference any kept entity
//
// It returns nil if nothing is selected.
func (a *Atlas) SubAtlas(matches atlasgen.TaggablePredicate, cut atlasgen.CutType) *Atlas {
	kept := make(map[int64]bool)
	for _, e := range a.entities {
		if matches(e) {
			kept[e.ID] = true
		}
	}
	if cut == atlasgen.SilkCut || cut == atlasgen.SoftCut {
		a.keepMembers(kept)
	}
	if cut == atlasgen.SoftCut {
		for _, e := range a.entities {
			if e.Type != Relation || kept[e.ID] {
				continue
			}
			for _, member := range e.Members {
				if kept[member] {
					kept[e.ID] = true
					break
				}
			}
		}
	}
	if len(kept) == 0 {
		return nil
	}
	selected := make([]*Entity, 0, len(kept))
	for _, e := range a.entities {
		if kept[e.ID] {
			selected = append(selected, e)
		}
	}
	return New(a.name, selected...)
}

// keepMembers adds the members of every kept relation to kept, until nothing changes
func (a *Atlas) keepMembers(kept map[int64]bool) {
	pending := make([]int64, 0, len(kept))
	for id := range kept {
		pending = append(pending, id)
	}
	for len(pending) > 0 {
		id := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		e, ok := a.index[id]
		if !ok || e.Type != Relation {
			continue
		}
		for _, member := range e.Members {
			if _, ok := a.index[member]; ok && !kept[member] {
				kept[member] = true
				pending = append(pending, member)
			}
		}
	}
}
