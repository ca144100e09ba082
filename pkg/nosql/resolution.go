package nosql

// Resolution selects how the full-text search layer merges per-term result
// sets.
type Resolution int

const (
	// ResolutionAnd intersects per-term results (conjunction).
	ResolutionAnd Resolution = iota
	// ResolutionOr unions per-term results (disjunction).
	ResolutionOr
)

func (r Resolution) String() string {
	switch r {
	case ResolutionAnd:
		return "and"
	case ResolutionOr:
		return "or"
	default:
		return "unknown"
	}
}
