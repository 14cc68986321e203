package sqlite

const schemaNodes = `
CREATE TABLE IF NOT EXISTS nodes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    type TEXT
)`

// dedup_key is NULL unless duplicate edges are disallowed; NULLs never
// collide under the UNIQUE constraint.
const schemaRelationships = `
CREATE TABLE IF NOT EXISTS relationships (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source INTEGER NOT NULL REFERENCES nodes(id),
    target INTEGER NOT NULL REFERENCES nodes(id),
    label TEXT NOT NULL,
    dedup_key TEXT UNIQUE
)`

const indexRelationshipsSource = `CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source)`
const indexRelationshipsTarget = `CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target)`

func allSchemaStatements() []string {
	return []string{
		schemaNodes,
		schemaRelationships,
		indexRelationshipsSource,
		indexRelationshipsTarget,
	}
}

func allPragmas() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
}
