package types

import "time"

// Fields are the scalar values of a sync payload. Dates are raw strings and
// are parsed on a best-effort basis; unparsable values are dropped.
type Fields struct {
	Title         string          `json:"title"`
	Status        string          `json:"status,omitempty"`
	Priority      *int            `json:"priority,omitempty"`
	Created       string          `json:"created,omitempty"`
	Updated       string          `json:"updated,omitempty"`
	DueDate       string          `json:"due_date,omitempty"`
	ScheduleStart string          `json:"schedule_start,omitempty"`
	ScheduleEnd   string          `json:"schedule_end,omitempty"`
	Content       string          `json:"content,omitempty"`
	Archived      bool            `json:"archived,omitempty"`
	SeqID         string          `json:"seq_id,omitempty"`
	Color         string          `json:"color,omitempty"`
	IsInbox       bool            `json:"is_inbox,omitempty"`
	Checklist     []ChecklistItem `json:"checklist,omitempty"`

	Parents
}

// SyncPayload is the desired state of one entity. A nil Activity, Labels, or
// People slice leaves that store untouched; an empty slice clears it.
type SyncPayload struct {
	ID       string          `json:"id"`
	Kind     Kind            `json:"kind"`
	Fields   Fields          `json:"fields"`
	Activity []ActivityEntry `json:"activity,omitempty"`
	Labels   []string        `json:"labels,omitempty"`
	People   []string        `json:"people,omitempty"`
}

// Validate checks the id format, title, and hierarchy shape.
func (p SyncPayload) Validate() error {
	if !p.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := ValidateID(p.ID, p.Kind); err != nil {
		return err
	}
	if p.Fields.Title == "" {
		return ErrMissingTitle
	}
	return p.Kind.ValidateParents(p.Fields.Parents)
}

// ExportRecord is one line of a JSONL export: a payload plus the entity's
// own dependency lists.
type ExportRecord struct {
	SyncPayload
	Dependencies *Dependencies `json:"dependencies,omitempty"`
}

// PayloadFor builds the payload that reproduces e. Activity is left nil so a
// sync of the result does not touch the ledger.
func PayloadFor(e *Entity) SyncPayload {
	f := Fields{
		Title:     e.Title,
		Status:    e.Status,
		Priority:  e.Priority,
		Created:   e.CreatedAt.UTC().Format(time.RFC3339),
		Updated:   e.UpdatedAt.UTC().Format(time.RFC3339),
		DueDate:   formatTime(e.DueDate, DateLayout),
		Content:   e.Content,
		Archived:  e.Archived,
		SeqID:     e.SeqID,
		Color:     e.Color,
		IsInbox:   e.IsInbox,
		Checklist: e.Checklist,
		Parents:   e.Parents,
	}
	f.ScheduleStart = formatTime(e.ScheduleStart, DateTimeLayout)
	f.ScheduleEnd = formatTime(e.ScheduleEnd, DateTimeLayout)
	if f.Status == "" {
		f.Status = e.StatusRaw
	}
	return SyncPayload{
		ID:     e.ID,
		Kind:   e.Kind,
		Fields: f,
		Labels: append([]string{}, e.Labels...),
		People: append([]string{}, e.People...),
	}
}
