package repositories

// migration represents a single database migration
type migration struct {
	version  int
	name     string
	sqlite   string
	postgres string
}

// migrations is the ordered list of all database migrations.
// Applied versions are recorded in schema_migrations and never re-run.
var migrations = []migration{
	{
		version: 1,
		name:    "create_posts_table",
		sqlite: `
			CREATE TABLE IF NOT EXISTS posts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				title VARCHAR(100) NOT NULL,
				slug VARCHAR(50) NOT NULL DEFAULT '-',
				content TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				image VARCHAR(100)
			);
		`,
		postgres: `
			CREATE TABLE IF NOT EXISTS posts (
				id BIGSERIAL PRIMARY KEY,
				title VARCHAR(100) NOT NULL,
				slug VARCHAR(50) NOT NULL DEFAULT '-',
				content TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				image VARCHAR(100)
			);
		`,
	},
	{
		version: 2,
		name:    "index_posts_slug",
		sqlite: `
			CREATE INDEX IF NOT EXISTS idx_posts_slug ON posts(slug);
		`,
		postgres: `
			CREATE INDEX IF NOT EXISTS idx_posts_slug ON posts(slug);
		`,
	},
}

const createSchemaMigrationsSQLite = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)
`

const createSchemaMigrationsPostgres = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ DEFAULT now()
	)
`
