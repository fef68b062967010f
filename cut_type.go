package atlasgen

// CutType describes how a sub-atlas is derived from a larger Atlas
type CutType string

const (
	// SilkCut keeps matching entities and the members of matching relations
	SilkCut CutType = "silk_cut"
	// SoftCut keeps matching entities, and preserves entities they reference (or which reference
	// them) for context, even when those entities do not match themselves
	SoftCut CutType = "soft_cut"
	// HardCut keeps matching entities only
	HardCut CutType = "hard_cut"
)
