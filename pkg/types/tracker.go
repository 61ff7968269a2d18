package types

import "context"

// EntitySyncer is the write path: whole-entity upserts and deletes.
type EntitySyncer interface {
	// SyncEntity applies the desired state of one entity to the entity
	// record, its tag links, its activity ledger, and its search entry in a
	// single transaction.
	SyncEntity(ctx context.Context, p SyncPayload) error

	// DeleteEntity removes the entity with its tag links, activity, and
	// search entry. Edges on other entities that reference it are kept.
	DeleteEntity(ctx context.Context, id string) error
}

// EntityReader is the read path.
type EntityReader interface {
	GetEntity(ctx context.Context, id string) (*Entity, error)
	QueryEntities(ctx context.Context, q EntityQuery) ([]*Entity, error)
	Search(ctx context.Context, text string) ([]SearchHit, error)
}

// DependencyGraph maintains blocks/blocked_by edges on both endpoints.
type DependencyGraph interface {
	AddEdge(ctx context.Context, sourceID, targetID string, dir Direction) error
	RemoveEdge(ctx context.Context, sourceID, targetID string, dir Direction) error
	Dependencies(ctx context.Context, id string) (Dependencies, error)
	ListCandidates(ctx context.Context, projectID string, exclude []string) ([]Candidate, error)
	VerifyEdges(ctx context.Context) (EdgeReport, error)
	RepairEdges(ctx context.Context) (EdgeReport, error)
}

// IndexMaintainer rebuilds and checks the derived search index.
type IndexMaintainer interface {
	RebuildIndex(ctx context.Context) (int, error)
	VerifyIndex(ctx context.Context) (IndexReport, error)
	FixIndex(ctx context.Context) (IndexReport, error)
}

// ActivityLog reads and appends ledger entries outside of a full sync.
type ActivityLog interface {
	Activity(ctx context.Context, id string) ([]ActivityEntry, error)
	ProjectActivity(ctx context.Context, projectID string, limit int) ([]ActivityEntry, error)
	AppendActivity(ctx context.Context, id string, change ActivityChange) error
	AddNote(ctx context.Context, id, content string) error
}

// Directory lists the lookup records.
type Directory interface {
	Labels(ctx context.Context) ([]Label, error)
	People(ctx context.Context) ([]Person, error)
	Statuses(ctx context.Context) ([]Status, error)
	EnsurePerson(ctx context.Context, name string) (*Person, error)
}

// Tracker is the full engine exposed to the CLI and other callers.
type Tracker interface {
	// Attach opens the backend described by config. Returns
	// ErrAlreadyAttached if called twice.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	Detach() error

	EntitySyncer
	EntityReader
	DependencyGraph
	IndexMaintainer
	ActivityLog
	Directory
}
