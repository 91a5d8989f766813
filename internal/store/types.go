package store

import "time"

// StoredSpec is a named specification at rest. Source is the
// expression text; it parses on the way out, never on the way in, so
// the store has no dependency on the compiler.
type StoredSpec struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Source      string    `json:"source"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Violation is one recorded check failure.
type Violation struct {
	ID         int64     `json:"id"`
	SpecName   string    `json:"spec_name"`
	Path       string    `json:"path,omitempty"`
	Slot       string    `json:"slot,omitempty"`
	Message    string    `json:"message"`
	ObservedAt time.Time `json:"observed_at"`
}

// Stats summarizes what the store holds.
type Stats struct {
	TotalSpecs      int64 `json:"total_specs"`
	TotalViolations int64 `json:"total_violations"`
}
