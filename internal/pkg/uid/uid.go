package uid

// NumberID generates sortable numeric identifiers (record primary keys).
type NumberID interface {
	Generate() int64
}

// StringID generates opaque string identifiers (correlation and operation IDs).
type StringID interface {
	Generate() string
}
