package types

// Snippets hold the highlighted fragment of each searchable column.
type Snippets struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Updates string `json:"updates,omitempty"`
	People  string `json:"people,omitempty"`
	Labels  string `json:"labels,omitempty"`
}

// SearchHit is one search result resolved to its entity.
type SearchHit struct {
	Entity   *Entity  `json:"entity"`
	Snippets Snippets `json:"snippets"`
}

// IndexReport groups search-index drift by kind.
type IndexReport struct {
	Orphaned map[Kind][]string `json:"orphaned"` // indexed, no entity
	Missing  map[Kind][]string `json:"missing"`  // entity, not indexed
}

// Clean reports whether the index matches the store.
func (r IndexReport) Clean() bool {
	return countIDs(r.Orphaned) == 0 && countIDs(r.Missing) == 0
}

// OrphanedCount is the number of orphaned index rows.
func (r IndexReport) OrphanedCount() int { return countIDs(r.Orphaned) }

// MissingCount is the number of entities without an index row.
func (r IndexReport) MissingCount() int { return countIDs(r.Missing) }

func countIDs(m map[Kind][]string) int {
	n := 0
	for _, ids := range m {
		n += len(ids)
	}
	return n
}
