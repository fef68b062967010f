package atlasgen

// TaggablePredicate - A generic function for selecting Taggables
type TaggablePredicate func(t Taggable) bool

// Nothing is a TaggablePredicate which excludes everything
func Nothing(t Taggable) bool {
	return false
}

// Everything is a TaggablePredicate which includes everything
func Everything(t Taggable) bool {
	return true
}
