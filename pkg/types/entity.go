package types

import "time"

// Date layouts used for persisted and rendered values.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05"
)

// ChecklistItem is one line of a task or subtask checklist.
type ChecklistItem struct {
	Text string `json:"text" yaml:"text"`
	Done bool   `json:"done" yaml:"done"`
}

// Entity is one work item: a project, epic, task, subtask, or note.
type Entity struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	Title     string `json:"title"`
	Status    string `json:"status"`               // resolved status name
	StatusRaw string `json:"status_raw,omitempty"` // token as last supplied
	Priority  *int   `json:"priority,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	ScheduleStart *time.Time `json:"schedule_start,omitempty"`
	ScheduleEnd   *time.Time `json:"schedule_end,omitempty"`

	Content  string `json:"content,omitempty"`
	Archived bool   `json:"archived,omitempty"`
	SeqID    string `json:"seq_id,omitempty"`

	Parents

	Color     string          `json:"color,omitempty"`    // project
	IsInbox   bool            `json:"is_inbox,omitempty"` // epic
	Checklist []ChecklistItem `json:"checklist,omitempty"`

	// Read-side projections filled by GetEntity.
	Labels    []string `json:"labels,omitempty"`
	People    []string `json:"people,omitempty"`
	Blocks    []string `json:"blocks,omitempty"`
	BlockedBy []string `json:"blocked_by,omitempty"`
}

// EntityQuery filters QueryEntities. Zero values do not filter.
type EntityQuery struct {
	Kind            Kind
	Status          string
	ProjectID       string
	EpicID          string
	DueBefore       *time.Time
	DueAfter        *time.Time
	IncludeArchived bool
	Limit           int
}
