package atlas

import (
	"github.com/paulmach/orb"
)

// EntityType classifies the entities of an Atlas
type EntityType string

const (
	// Point entities have a single node
	Point EntityType = "point"
	// Line entities are open ways
	Line EntityType = "line"
	// Area entities are closed ways
	Area EntityType = "area"
	// Relation entities group other entities by id
	Relation EntityType = "relation"
)

// Node is a located vertex of a Point, Line or Area
type Node struct {
	ID  int64   `json:"id"`
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Entity is a single feature of an Atlas. Entity ids are unique within an Atlas.
type Entity struct {
	ID      int64             `json:"id"`
	Type    EntityType        `json:"type"`
	Tags    map[string]string `json:"tags,omitempty"`
	Nodes   []Node            `json:"nodes,omitempty"`
	Members []int64           `json:"members,omitempty"`
}

// Tag retrieves the value of a single tag
func (e *Entity) Tag(key string) (string, bool) {
	value, ok := e.Tags[key]
	return value, ok
}

// AllTags returns all tags of this Entity
func (e *Entity) AllTags() map[string]string {
	return e.Tags
}

// Clone returns a deep copy of this Entity
func (e *Entity) Clone() *Entity {
	clone := &Entity{ID: e.ID, Type: e.Type}
	if e.Tags != nil {
		clone.Tags = make(map[string]string, len(e.Tags))
		for k, v := range e.Tags {
			clone.Tags[k] = v
		}
	}
	if e.Nodes != nil {
		clone.Nodes = append([]Node(nil), e.Nodes...)
	}
	if e.Members != nil {
		clone.Members = append([]int64(nil), e.Members...)
	}
	return clone
}

// Bound returns the extent of this Entity's nodes. Relations have an empty bound.
func (e *Entity) Bound() orb.Bound {
	if len(e.Nodes) == 0 {
		return orb.Bound{}
	}
	first := orb.Point{e.Nodes[0].Lon, e.Nodes[0].Lat}
	bound := first.Bound()
	for _, node := range e.Nodes[1:] {
		bound = bound.Extend(orb.Point{node.Lon, node.Lat})
	}
	return bound
}

// Geometry returns the geometry of this Entity, or nil for relations and entities without nodes
func (e *Entity) Geometry() orb.Geometry {
	if len(e.Nodes) == 0 {
		return nil
	}
	points := make([]orb.Point, len(e.Nodes))
	for i, node := range e.Nodes {
		points[i] = orb.Point{node.Lon, node.Lat}
	}
	switch e.Type {
	case Point:
		return points[0]
	case Line:
		return orb.LineString(points)
	case Area:
		ring := orb.Ring(points)
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		return orb.Polygon{ring}
	default:
		return nil
	}
}
