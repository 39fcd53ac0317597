package types

import "time"

// Capability is a named, leveled skill. Referenced by name from agents,
// tasks, and roles; never owned by them. Immutable after creation except
// for Description.
type Capability struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`

	// ComplexityLevel orders capabilities within a category.
	ComplexityLevel int `json:"complexity_level"`

	// Core marks foundational capabilities.
	Core bool `json:"core"`

	CreatedAt time.Time `json:"created_at"`
}

// CompatibleWith reports whether two capabilities share a category.
func (c *Capability) CompatibleWith(other *Capability) bool {
	return other != nil && c.Category == other.Category
}

// Subsumes reports whether c covers other: same category and
// greater-or-equal complexity.
func (c *Capability) Subsumes(other *Capability) bool {
	return c.CompatibleWith(other) && c.ComplexityLevel >= other.ComplexityLevel
}
