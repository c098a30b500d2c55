package domain

// Category is one row per category name (spec.md section 3). Counts are
// recomputed alongside the concept index rebuild.
type Category struct {
	ID      uint32
	Name    string
	Aliases []string

	ParentID *uint32

	DocumentCount int
	ChunkCount    int
}

// NewCategoryID derives the stable category id from its name, with the
// same `::n` collision scheme used for Concept ids.
func NewCategoryID(name string, taken func(id uint32) (existingName string, ok bool)) uint32 {
	return ResolveCollision(name, taken)
}
