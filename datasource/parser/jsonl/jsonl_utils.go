package jsonl

import (
	"fmt"

	"github.com/go-sif/atlasgen/atlas"
	"github.com/tidwall/gjson"
)

func parseEntity(value gjson.Result) (*atlas.Entity, error) {
	id := value.Get("id")
	if !id.Exists() {
		return nil, fmt.Errorf("entity has no id")
	}
	entity := &atlas.Entity{ID: id.Int()}
	switch t := atlas.EntityType(value.Get("type").String()); t {
	case atlas.Point, atlas.Line, atlas.Area, atlas.Relation:
		entity.Type = t
	default:
		return nil, fmt.Errorf("entity %d has unknown type %q", entity.ID, t)
	}
	if tags := value.Get("tags"); tags.IsObject() {
		entity.Tags = make(map[string]string)
		tags.ForEach(func(key, val gjson.Result) bool {
			entity.Tags[key.String()] = val.String()
			return true
		})
	}
	if nodes := value.Get("nodes"); nodes.IsArray() {
		for _, node := range nodes.Array() {
			entity.Nodes = append(entity.Nodes, atlas.Node{
				ID:  node.Get("id").Int(),
				Lon: node.Get("lon").Float(),
				Lat: node.Get("lat").Float(),
			})
		}
	} else if lon, lat := value.Get("lon"), value.Get("lat"); lon.Exists() && lat.Exists() {
		entity.Nodes = []atlas.Node{{ID: entity.ID, Lon: lon.Float(), Lat: lat.Float()}}
	}
	if members := value.Get("members"); members.IsArray() {
		for _, member := range members.Array() {
			entity.Members = append(entity.Members, member.Int())
		}
	}
	switch entity.Type {
	case atlas.Relation:
		if len(entity.Members) == 0 {
			return nil, fmt.Errorf("relation %d has no members", entity.ID)
		}
	case atlas.Point:
		if len(entity.Nodes) != 1 {
			return nil, fmt.Errorf("point %d must have exactly one node", entity.ID)
		}
	default:
		if len(entity.Nodes) < 2 {
			return nil, fmt.Errorf("%s %d must have at least two nodes", entity.Type, entity.ID)
		}
	}
	return entity, nil
}
