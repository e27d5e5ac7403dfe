package sqlite

const schemaSQL = `
-- Job queue. One logical shape shared by all four families; rows are
-- created by the enqueuer and mutated only by the dispatcher.
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	family TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	natural_key TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL,
	priority INTEGER NOT NULL DEFAULT 5,
	depth INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	started_at INTEGER,
	completed_at INTEGER,
	last_error TEXT,
	result_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs(family, status, priority DESC, created_at ASC);

-- Natural-key dedupe: at most one non-terminal job per (family, key).
-- Terminal rows fall out of the index so the target can be re-fetched later.
CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_natural_key
	ON jobs(family, natural_key)
	WHERE natural_key != '' AND status IN ('pending', 'running');

-- Phrase patterns mined from fetched pages
CREATE TABLE IF NOT EXISTS phrase_patterns (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	source_url TEXT NOT NULL,
	source_domain TEXT NOT NULL,
	text TEXT NOT NULL,
	kind TEXT NOT NULL,
	category TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0.7,
	embedding BLOB,
	embed_model TEXT,
	created_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_patterns_dedupe
	ON phrase_patterns(source_domain, text, kind);
CREATE INDEX IF NOT EXISTS idx_patterns_job ON phrase_patterns(job_id);

-- Products extracted from uploaded documents
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	page INTEGER NOT NULL DEFAULT 1,
	line_no INTEGER NOT NULL DEFAULT 0,
	name TEXT NOT NULL,
	description TEXT,
	category TEXT,
	sku TEXT NOT NULL,
	price REAL,
	currency TEXT NOT NULL DEFAULT 'USD',
	dimensions_json TEXT,
	materials_json TEXT,
	colors_json TEXT,
	needs_review INTEGER NOT NULL DEFAULT 1,
	embedding BLOB,
	embed_model TEXT,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_job ON products(job_id);
CREATE INDEX IF NOT EXISTS idx_products_sku ON products(sku);

-- One row per mail delivery attempt, written regardless of outcome
CREATE TABLE IF NOT EXISTS mail_log (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	recipient TEXT NOT NULL,
	subject TEXT NOT NULL,
	status TEXT NOT NULL,
	message_id TEXT,
	error TEXT,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_mail_log_job ON mail_log(job_id);

-- Daily learning counters, incremented atomically by the stats aggregator
CREATE TABLE IF NOT EXISTS learning_stats (
	stat_date TEXT PRIMARY KEY,
	pages_fetched INTEGER NOT NULL DEFAULT 0,
	patterns_learned INTEGER NOT NULL DEFAULT 0,
	documents_parsed INTEGER NOT NULL DEFAULT 0,
	products_extracted INTEGER NOT NULL DEFAULT 0,
	embeddings_created INTEGER NOT NULL DEFAULT 0,
	mails_sent INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
);
`
