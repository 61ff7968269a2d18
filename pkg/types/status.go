package types

// AllKinds is the applicability wildcard.
const AllKinds = "all"

// Status is a kind-scoped lifecycle value.
type Status struct {
	Name        string   `json:"name" toml:"name"`
	DisplayName string   `json:"display_name" toml:"display_name"`
	AppliesTo   []string `json:"applies_to" toml:"applies_to"`
	Color       string   `json:"color,omitempty" toml:"color"`
	Order       int      `json:"order" toml:"order"`
	Active      bool     `json:"active" toml:"active"`
}

// Applies reports whether the status may be assigned to entities of kind k.
func (s Status) Applies(k Kind) bool {
	for _, a := range s.AppliesTo {
		if a == AllKinds || a == string(k) {
			return true
		}
	}
	return false
}

// BuiltInStatuses is the catalog seeded into an empty database.
var BuiltInStatuses = []Status{
	{Name: "active", DisplayName: "Active", AppliesTo: []string{"project", "epic", "note"}, Color: "green", Order: 1, Active: true},
	{Name: "completed", DisplayName: "Completed", AppliesTo: []string{"project", "epic"}, Color: "blue", Order: 2, Active: true},
	{Name: "canceled", DisplayName: "Canceled", AppliesTo: []string{"project", "epic"}, Color: "gray", Order: 3, Active: true},
	{Name: "todo", DisplayName: "To Do", AppliesTo: []string{"task", "subtask"}, Color: "gray", Order: 1, Active: true},
	{Name: "next", DisplayName: "Next", AppliesTo: []string{"task", "subtask"}, Color: "cyan", Order: 2, Active: true},
	{Name: "in_progress", DisplayName: "In Progress", AppliesTo: []string{"task", "subtask"}, Color: "yellow", Order: 3, Active: true},
	{Name: "on_hold", DisplayName: "On Hold", AppliesTo: []string{"task", "subtask"}, Color: "orange", Order: 4, Active: true},
	{Name: "blocked", DisplayName: "Blocked", AppliesTo: []string{"task", "subtask"}, Color: "red", Order: 5, Active: true},
	{Name: "done", DisplayName: "Done", AppliesTo: []string{"task", "subtask"}, Color: "green", Order: 6, Active: true},
	{Name: "cancelled", DisplayName: "Cancelled", AppliesTo: []string{"task", "subtask"}, Color: "gray", Order: 7, Active: true},
}
