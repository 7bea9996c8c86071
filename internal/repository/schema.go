package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

// schemaSubmissions is the append-only submission log. Rows are inserted
// once and never rewritten; contact_requested/contact_at are the single
// follow-up exception. Emails are stored lowercased.
const schemaSubmissions = `
CREATE TABLE IF NOT EXISTS submissions (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    loan_amount REAL NOT NULL,
    credit_score INTEGER NOT NULL,
    annual_income REAL NOT NULL,
    has_bankruptcy INTEGER NOT NULL DEFAULT 0,
    decision TEXT NOT NULL,
    reason_code TEXT NOT NULL,
    flags TEXT,
    source TEXT,
    contact_requested INTEGER,
    contact_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_email ON submissions(email, created_at);
CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at);
CREATE INDEX IF NOT EXISTS idx_submissions_decision ON submissions(decision);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaSubmissions,
	}
}
