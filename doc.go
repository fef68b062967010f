// Package atlasgen contains the core components of atlasgen, a staged pipeline which generates
// per-country, per-shard Atlas datasets from raw map extracts. This root package defines the
// types which are shared by every stage of the pipeline and by the collaborators it relies on
// (sharding strategies, boundary lookups, geometry engines), and is an excellent overview of
// the pipeline's key concepts.
package atlasgen
