package atlas

// Delta lists the entities which differ between two versions of an Atlas
type Delta struct {
	AtlasName string  `json:"name"`
	Added     []int64 `json:"added,omitempty"`
	Removed   []int64 `json:"removed,omitempty"`
	Changed   []int64 `json:"changed,omitempty"`
}

// Name returns the name of the Atlas this Delta describes
func (d *Delta) Name() string {
	return d.AtlasName
}

// Empty returns true iff both versions were identical
func (d *Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff computes the Delta from before to after. Both are sorted by id, so the result is too.
func Diff(before *Atlas, after *Atlas) *Delta {
	delta := &Delta{AtlasName: after.Name()}
	for _, e := range after.Entities() {
		previous, ok := before.Entity(e.ID)
		if !ok {
			delta.Added = append(delta.Added, e.ID)
		} else if !equalEntities(previous, e) {
			delta.Changed = append(delta.Changed, e.ID)
		}
	}
	for _, e := range before.Entities() {
		if _, ok := after.Entity(e.ID); !ok {
			delta.Removed = append(delta.Removed, e.ID)
		}
	}
	return delta
}

// equalEntities compares two entities, treating empty and absent tags, nodes and members alike
func equalEntities(a *Entity, b *Entity) bool {
	if a.ID != b.ID || a.Type != b.Type || len(a.Tags) != len(b.Tags) || len(a.Nodes) != len(b.Nodes) || len(a.Members) != len(b.Members) {
		return false
	}
	for k, v := range a.Tags {
		if other, ok := b.Tags[k]; !ok || other != v {
			return false
		}
	}
	for i := range a.Nodes {
		if a.Nodes[i] != b.Nodes[i] {
			return false
		}
	}
	for i := range a.Members {
		if a.Members[i] != b.Members[i] {
			return false
		}
	}
	return true
}
