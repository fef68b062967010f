package geometry

import (
	"context"
	"fmt"
	"path"

	"github.com/go-sif/atlasgen"
	"github.com/go-sif/atlasgen/atlas"
	"github.com/go-sif/atlasgen/errors"
	"github.com/go-sif/atlasgen/filter"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// Tags written by the reference engine
const (
	CountryCodeTag     = "iso_country_code"
	RelationSlicingTag = "relation_slicing"
	sectionIDFactor    = 1000
)

// Values of RelationSlicingTag
const (
	RelationComplete = "complete"
	RelationPartial  = "partial"
)

// Reference is an Engine over the reference atlas. It slices by node containment, and
// sections ways at nodes shared with other edges; it makes no claim of geometric exactness.
type Reference struct {
	logger *zap.Logger
}

// NewReference produces a Reference engine
func NewReference(logger *zap.Logger) *Reference {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reference{logger: logger.Named("geometry")}
}

func asAtlas(a atlasgen.Atlas) (*atlas.Atlas, error) {
	ra, ok := a.(*atlas.Atlas)
	if !ok {
		return nil, fmt.Errorf("reference engine cannot process %T", a)
	}
	return ra, nil
}

// result converts an empty atlas into a nil Atlas, avoiding a typed nil
func result(a *atlas.Atlas) atlasgen.Atlas {
	if a == nil || a.Len() == 0 {
		return nil
	}
	return a
}

func nodeInside(e *atlas.Entity, inside func(orb.Point) bool) bool {
	for _, node := range e.Nodes {
		if inside(orb.Point{node.Lon, node.Lat}) {
			return true
		}
	}
	return false
}

// keepReferencedRelations adds the relations of candidates referencing any kept entity,
// until nothing changes
func keepReferencedRelations(kept map[int64]*atlas.Entity, relations []*atlas.Entity) {
	for changed := true; changed; {
		changed = false
		for _, relation := range relations {
			if _, ok := kept[relation.ID]; ok {
				continue
			}
			for _, member := range relation.Members {
				if _, ok := kept[member]; ok {
					kept[relation.ID] = relation
					changed = true
					break
				}
			}
		}
	}
}

// LoadRaw reads every raw extract overlapping the task's Shard, keeping the entities with a
// node inside both the Shard and the task's country
func (r *Reference) LoadRaw(ctx context.Context, task atlasgen.GenerationTask, pbf PBFContext, boundaries atlasgen.BoundaryLookup) (atlasgen.Atlas, error) {
	bound := task.Shard.Bounds()
	inside := func(p orb.Point) bool {
		return bound.Contains(p) && boundaries.Contains(task.Country, p)
	}
	kept := make(map[int64]*atlas.Entity)
	var relations []*atlas.Entity
	for _, rawShard := range pbf.Sharding.Shards(bound) {
		file := pbf.Scheme.Apply(rawShard)
		f, err := pbf.Store.Open(ctx, file)
		if errors.IsMissingDataset(err) {
			r.logger.Debug("No raw extract for shard", zap.String("shard", rawShard.Name()), zap.String("file", file))
			continue
		} else if err != nil {
			return nil, err
		}
		entities, err := pbf.Parser.ParseAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("unable to parse %s: %w", path.Clean(file), err)
		}
		for _, e := range entities {
			if e.Type == atlas.Relation {
				relations = append(relations, e)
			} else if nodeInside(e, inside) {
				kept[e.ID] = e
			}
		}
	}
	keepReferencedRelations(kept, relations)
	entities := make([]*atlas.Entity, 0, len(kept))
	for _, e := range kept {
		entities = append(entities, e)
	}
	return result(atlas.New(task.Key(), entities...)), nil
}

// SliceLines assigns every entity to the country, trimming the nodes of lines and areas which
// leave it. Entities selected by the always-slice predicate are trimmed even when they only
// touch the boundary.
func (r *Reference) SliceLines(ctx context.Context, country string, raw atlasgen.Atlas, boundaries atlasgen.BoundaryLookup) (atlasgen.Atlas, error) {
	ra, err := asAtlas(raw)
	if err != nil {
		return nil, err
	}
	var sliced []*atlas.Entity
	for _, e := range ra.Entities() {
		clone := e.Clone()
		if clone.Tags == nil {
			clone.Tags = make(map[string]string)
		}
		clone.Tags[CountryCodeTag] = country
		if clone.Type == atlas.Line || clone.Type == atlas.Area {
			var inside []atlas.Node
			for _, node := range clone.Nodes {
				if boundaries.Contains(country, orb.Point{node.Lon, node.Lat}) {
					inside = append(inside, node)
				}
			}
			if len(inside) < len(clone.Nodes) || boundaries.ShouldAlwaysSlice(e) {
				minimum := 2
				if clone.Type == atlas.Area {
					minimum = 3
				}
				if len(inside) < minimum {
					continue
				}
				clone.Nodes = inside
			}
		}
		sliced = append(sliced, clone)
	}
	return result(atlas.New(ra.Name(), sliced...)), nil
}

// SliceRelations completes relations with the members which were loaded by neighboring shards
// of the same country, copying in those which reach into this Shard. Relations are tagged
// complete when every member was found.
func (r *Reference) SliceRelations(ctx context.Context, lineSliced atlasgen.Atlas, input RelationSlicingInput) (atlasgen.Atlas, error) {
	ra, err := asAtlas(lineSliced)
	if err != nil {
		return nil, err
	}
	neighbors := Neighbors(input.Sharding, input.Task)
	bound := input.Task.Shard.Bounds()
	sources := []AtlasSource{input.LineSlicedSub, input.LineSliced}
	cache := make(map[string]*atlas.Atlas)
	lookup := func(source int, key string) (*atlas.Atlas, error) {
		cacheKey := fmt.Sprintf("%d/%s", source, key)
		if cached, ok := cache[cacheKey]; ok {
			return cached, nil
		}
		found, ok, err := sources[source].Lookup(ctx, key)
		if err != nil || !ok {
			cache[cacheKey] = nil
			return nil, err
		}
		neighborAtlas, err := asAtlas(found)
		cache[cacheKey] = neighborAtlas
		return neighborAtlas, err
	}
	// members are searched in the sliced subset first, then in the full line sliced atlas
	findMember := func(id int64) (*atlas.Entity, error) {
		for _, neighbor := range neighbors {
			key := atlasgen.TaskKey(input.Task.Country, neighbor)
			for source := range sources {
				neighborAtlas, err := lookup(source, key)
				if err != nil {
					return nil, err
				}
				if neighborAtlas == nil {
					continue
				}
				if e, ok := neighborAtlas.Entity(id); ok {
					return e, nil
				}
			}
		}
		return nil, nil
	}

	entities := append([]*atlas.Entity(nil), ra.Entities()...)
	copied := make(map[int64]bool)
	for i, e := range entities {
		if e.Type != atlas.Relation {
			continue
		}
		complete := true
		for _, member := range e.Members {
			if _, ok := ra.Entity(member); ok || copied[member] {
				continue
			}
			found, err := findMember(member)
			if err != nil {
				return nil, err
			}
			if found == nil {
				complete = false
				continue
			}
			if nodeInside(found, bound.Contains) {
				entities = append(entities, found)
				copied[member] = true
			}
		}
		tagged := e.Clone()
		if tagged.Tags == nil {
			tagged.Tags = make(map[string]string)
		}
		if complete {
			tagged.Tags[RelationSlicingTag] = RelationComplete
		} else {
			tagged.Tags[RelationSlicingTag] = RelationPartial
		}
		entities[i] = tagged
	}
	return result(atlas.New(ra.Name(), entities...)), nil
}

// Section splits the edges selected by the way sectioning filter at every interior node they
// share with another edge of this Shard or a neighboring one. Sections are numbered
// id*1000+1, id*1000+2 and so on, and relations referencing a sectioned edge reference its
// sections instead.
func (r *Reference) Section(ctx context.Context, fullySliced atlasgen.Atlas, input SectioningInput) (atlasgen.Atlas, error) {
	ra, err := asAtlas(fullySliced)
	if err != nil {
		return nil, err
	}
	sectionable, err := filter.WaySectioningFilter(input.Options)
	if err != nil {
		return nil, err
	}
	edgeFilter, err := filter.EdgeFilter(input.Options)
	if err != nil {
		return nil, err
	}

	// count the edges using each node, across this Shard and its neighbors
	usage := make(map[int64]map[int64]struct{})
	countEdges := func(a *atlas.Atlas) {
		for _, e := range a.Entities() {
			if e.Type != atlas.Line {
				continue
			}
			for _, node := range e.Nodes {
				if usage[node.ID] == nil {
					usage[node.ID] = make(map[int64]struct{})
				}
				usage[node.ID][e.ID] = struct{}{}
			}
		}
	}
	keys := []string{input.Task.Key()}
	for _, neighbor := range Neighbors(input.Sharding, input.Task) {
		keys = append(keys, atlasgen.TaskKey(input.Task.Country, neighbor))
	}
	for _, key := range keys {
		edges, ok, err := input.EdgeSub.Lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			// fall back to filtering the fully sliced atlas
			fully, found, err := input.FullySliced.Lookup(ctx, key)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			fa, err := asAtlas(fully)
			if err != nil {
				return nil, err
			}
			if edges = result(fa.SubAtlas(edgeFilter, atlasgen.SilkCut)); edges == nil {
				continue
			}
		}
		ea, err := asAtlas(edges)
		if err != nil {
			return nil, err
		}
		countEdges(ea)
	}

	sections := make(map[int64][]int64)
	var sectioned []*atlas.Entity
	for _, e := range ra.Entities() {
		if e.Type != atlas.Line || !sectionable(e) {
			sectioned = append(sectioned, e)
			continue
		}
		var pieces [][]atlas.Node
		start := 0
		for i := 1; i < len(e.Nodes)-1; i++ {
			if len(usage[e.Nodes[i].ID]) > 1 {
				pieces = append(pieces, e.Nodes[start:i+1])
				start = i
			}
		}
		if len(pieces) == 0 {
			sectioned = append(sectioned, e)
			continue
		}
		pieces = append(pieces, e.Nodes[start:])
		for i, nodes := range pieces {
			section := e.Clone()
			section.ID = e.ID*sectionIDFactor + int64(i+1)
			section.Nodes = append([]atlas.Node(nil), nodes...)
			sections[e.ID] = append(sections[e.ID], section.ID)
			sectioned = append(sectioned, section)
		}
	}
	for i, e := range sectioned {
		if e.Type != atlas.Relation {
			continue
		}
		var members []int64
		replaced := false
		for _, member := range e.Members {
			if ids, ok := sections[member]; ok {
				members = append(members, ids...)
				replaced = true
			} else {
				members = append(members, member)
			}
		}
		if replaced {
			relation := e.Clone()
			relation.Members = members
			sectioned[i] = relation
		}
	}
	return result(atlas.New(ra.Name(), sectioned...)), nil
}

// SubAtlas cuts an atlas with a predicate
func (r *Reference) SubAtlas(a atlasgen.Atlas, predicate atlasgen.TaggablePredicate, cut atlasgen.CutType) (atlasgen.Atlas, error) {
	ra, err := asAtlas(a)
	if err != nil {
		return nil, err
	}
	return result(ra.SubAtlas(predicate, cut)), nil
}

// Statistics counts the entities of an atlas
func (r *Reference) Statistics(a atlasgen.Atlas) (atlasgen.Statistics, error) {
	ra, err := asAtlas(a)
	if err != nil {
		return nil, err
	}
	return atlas.ComputeStatistics(ra), nil
}

// Delta compares two versions of an atlas, returning no Deltas when they are identical
func (r *Reference) Delta(before atlasgen.Atlas, after atlasgen.Atlas) ([]atlasgen.Delta, error) {
	rb, err := asAtlas(before)
	if err != nil {
		return nil, err
	}
	ra, err := asAtlas(after)
	if err != nil {
		return nil, err
	}
	delta := atlas.Diff(rb, ra)
	if delta.Empty() {
		return nil, nil
	}
	return []atlasgen.Delta{delta}, nil
}
