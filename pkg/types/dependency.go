package types

import "fmt"

// Direction is a dependency edge as seen from its source entity.
type Direction string

// Edge directions.
const (
	Blocks    Direction = "blocks"
	BlockedBy Direction = "blocked_by"
)

// ParseDirection returns the Direction named by s, or ErrInvalidDirection.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Blocks, BlockedBy:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// Reciprocal returns the direction stored on the other endpoint.
func (d Direction) Reciprocal() Direction {
	if d == Blocks {
		return BlockedBy
	}
	return Blocks
}

// Dependencies are the two edge lists owned by one entity.
type Dependencies struct {
	Blocks    []string `json:"blocks"`
	BlockedBy []string `json:"blocked_by"`
}

// Candidate is a task or subtask offered as a dependency target.
type Candidate struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Priority  *int   `json:"priority,omitempty"`
	SeqID     string `json:"seq_id,omitempty"`
	EpicID    string `json:"epic_id,omitempty"`
	EpicTitle string `json:"epic_title,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	TaskTitle string `json:"task_title,omitempty"`
	TaskSeqID string `json:"task_seq_id,omitempty"`
}

// EdgeRef names one stored edge row: EntityID's Direction list contains TargetID.
type EdgeRef struct {
	EntityID  string    `json:"entity_id"`
	Direction Direction `json:"direction"`
	TargetID  string    `json:"target_id"`
}

// EdgeReport lists graph inconsistencies. Dangling edges point at entities
// that no longer exist; Asymmetric edges lack their reciprocal row.
type EdgeReport struct {
	Dangling   []EdgeRef `json:"dangling"`
	Asymmetric []EdgeRef `json:"asymmetric"`
}

// Clean reports whether the graph is consistent.
func (r EdgeReport) Clean() bool {
	return len(r.Dangling) == 0 && len(r.Asymmetric) == 0
}
