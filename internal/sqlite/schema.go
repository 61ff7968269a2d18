package sqlite

// schemaVersion is stored in the meta table and bumped on incompatible changes.
const schemaVersion = "1"

// Schema DDL for all tables.
const (
	createMeta = `CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

	createStatuses = `CREATE TABLE IF NOT EXISTS statuses (
    name TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    applies_to TEXT NOT NULL,
    color TEXT NOT NULL DEFAULT '',
    sort_order INTEGER NOT NULL DEFAULT 0,
    active INTEGER NOT NULL DEFAULT 1
);`

	createEntities = `CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    title TEXT NOT NULL,
    status TEXT REFERENCES statuses(name),
    status_raw TEXT NOT NULL DEFAULT '',
    priority INTEGER,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    due_date TEXT,
    schedule_start TEXT,
    schedule_end TEXT,
    content TEXT NOT NULL DEFAULT '',
    archived INTEGER NOT NULL DEFAULT 0,
    seq_id TEXT NOT NULL DEFAULT '',
    project_id TEXT REFERENCES entities(id),
    epic_id TEXT REFERENCES entities(id),
    task_id TEXT REFERENCES entities(id),
    color TEXT NOT NULL DEFAULT '',
    is_inbox INTEGER NOT NULL DEFAULT 0,
    checklist TEXT NOT NULL DEFAULT '[]'
);`

	createLabels = `CREATE TABLE IF NOT EXISTS labels (
    label_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    name_key TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL
);`

	createPeople = `CREATE TABLE IF NOT EXISTS people (
    person_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    name_key TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL
);`

	createEntityLabels = `CREATE TABLE IF NOT EXISTS entity_labels (
    entity_id TEXT NOT NULL REFERENCES entities(id),
    label_id TEXT NOT NULL REFERENCES labels(label_id),
    PRIMARY KEY (entity_id, label_id)
);`

	createEntityPeople = `CREATE TABLE IF NOT EXISTS entity_people (
    entity_id TEXT NOT NULL REFERENCES entities(id),
    person_id TEXT NOT NULL REFERENCES people(person_id),
    PRIMARY KEY (entity_id, person_id)
);`

	createActivity = `CREATE TABLE IF NOT EXISTS activity (
    entry_id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL REFERENCES entities(id),
    timestamp TEXT NOT NULL,
    position INTEGER NOT NULL,
    content TEXT NOT NULL,
    entry_type TEXT NOT NULL,
    activity_type TEXT NOT NULL DEFAULT ''
);`

	// Each endpoint owns its rows; target_id is deliberately not a foreign key
	// so deleting an entity leaves references on other entities in place.
	createDependencies = `CREATE TABLE IF NOT EXISTS entity_dependencies (
    entity_id TEXT NOT NULL REFERENCES entities(id),
    direction TEXT NOT NULL CHECK (direction IN ('blocks', 'blocked_by')),
    target_id TEXT NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (entity_id, direction, target_id)
);`

	createSearchIndex = `CREATE VIRTUAL TABLE IF NOT EXISTS search_index USING fts5(
    entity_id UNINDEXED,
    entity_type UNINDEXED,
    title,
    content,
    updates,
    people,
    labels
);`
)

// Index DDL for common queries.
const (
	idxEntitiesKind       = `CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);`
	idxEntitiesProject    = `CREATE INDEX IF NOT EXISTS idx_entities_project ON entities(project_id);`
	idxEntitiesEpic       = `CREATE INDEX IF NOT EXISTS idx_entities_epic ON entities(epic_id);`
	idxEntitiesTask       = `CREATE INDEX IF NOT EXISTS idx_entities_task ON entities(task_id);`
	idxEntitiesStatus     = `CREATE INDEX IF NOT EXISTS idx_entities_status ON entities(status);`
	idxEntitiesDue        = `CREATE INDEX IF NOT EXISTS idx_entities_due ON entities(due_date);`
	idxEntityLabelsLabel  = `CREATE INDEX IF NOT EXISTS idx_entity_labels_label ON entity_labels(label_id);`
	idxEntityPeoplePerson = `CREATE INDEX IF NOT EXISTS idx_entity_people_person ON entity_people(person_id);`
	idxActivityEntity     = `CREATE INDEX IF NOT EXISTS idx_activity_entity ON activity(entity_id, timestamp, position);`
	idxDependenciesTarget = `CREATE INDEX IF NOT EXISTS idx_dependencies_target ON entity_dependencies(target_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createMeta,
	createStatuses,
	createEntities,
	createLabels,
	createPeople,
	createEntityLabels,
	createEntityPeople,
	createActivity,
	createDependencies,
	createSearchIndex,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxEntitiesKind,
	idxEntitiesProject,
	idxEntitiesEpic,
	idxEntitiesTask,
	idxEntitiesStatus,
	idxEntitiesDue,
	idxEntityLabelsLabel,
	idxEntityPeoplePerson,
	idxActivityEntity,
	idxDependenciesTarget,
}
