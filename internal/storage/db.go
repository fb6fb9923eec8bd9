package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"bimschedule/internal"
)

const (
	StatusFetched  = "fetched"
	StatusExported = "exported"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// DB is the intake ledger: which e-mails were seen, what happened to them,
// and a log of schedule runs. Material records are never stored.
type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS submissions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  outputRef TEXT NOT NULL DEFAULT '',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);
CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  source TEXT NOT NULL,
  submissionId INTEGER,
  materials INTEGER NOT NULL,
  usedFallback INTEGER NOT NULL DEFAULT 0,
  durationMs INTEGER NOT NULL,
  error TEXT NOT NULL DEFAULT '',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(submissionId) REFERENCES submissions(id)
);
`

	_, err := d.conn.Exec(schema)
	return err
}

const submissionColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef, outputRef`

func scanSubmission(scan func(dest ...any) error) (internal.SubmissionRow, error) {
	var row internal.SubmissionRow
	err := scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef, &row.OutputRef)
	return row, err
}

// UpsertSubmission records a fetched message. Re-fetching an existing
// message refreshes its metadata but keeps its status.
func (d *DB) UpsertSubmission(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.SubmissionRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO submissions (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.SubmissionRow{}, err
	}

	row, err := d.GetSubmissionByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.SubmissionRow{}, err
	}
	if row == nil {
		return internal.SubmissionRow{}, errors.New("failed to upsert submission")
	}
	return *row, nil
}

func (d *DB) GetSubmissionByProviderMessageID(provider, messageID string) (*internal.SubmissionRow, error) {
	row, err := scanSubmission(d.conn.QueryRow(`
SELECT `+submissionColumns+`
FROM submissions WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetSubmissionByID(id int) (*internal.SubmissionRow, error) {
	row, err := scanSubmission(d.conn.QueryRow(`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustSubmissionByProviderMessageID(provider, messageID string) (internal.SubmissionRow, error) {
	row, err := d.GetSubmissionByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.SubmissionRow{}, err
	}
	if row == nil {
		return internal.SubmissionRow{}, fmt.Errorf("submission not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

// ListSubmissionsByStatus returns the oldest rows in status. An empty
// provider matches every provider.
func (d *DB) ListSubmissionsByStatus(status, provider string, limit int) ([]internal.SubmissionRow, error) {
	rows, err := d.conn.Query(`
SELECT `+submissionColumns+`
FROM submissions WHERE status = ? AND (? = '' OR provider = ?)
ORDER BY receivedAt ASC, id ASC LIMIT ?
`, status, provider, provider, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.SubmissionRow
	for rows.Next() {
		row, err := scanSubmission(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateSubmissionStatus(id int, status, outputRef string) error {
	_, err := d.conn.Exec(`UPDATE submissions SET status = ?, outputRef = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, outputRef, id)
	return err
}

func (d *DB) InsertRun(run internal.RunRow) error {
	_, err := d.conn.Exec(`
INSERT INTO runs (runId, source, submissionId, materials, usedFallback, durationMs, error)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, run.RunID, string(run.Source), run.SubmissionID, run.Materials, run.UsedFallback, run.DurationMs, run.Error)
	return err
}

func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	rows, err := d.conn.Query(`
SELECT runId, source, submissionId, materials, usedFallback, durationMs, error
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		var run internal.RunRow
		var source string
		var submissionID sql.NullInt64
		if err := rows.Scan(&run.RunID, &source, &submissionID, &run.Materials, &run.UsedFallback, &run.DurationMs, &run.Error); err != nil {
			return nil, err
		}
		run.Source = internal.SubmissionSource(source)
		if submissionID.Valid {
			id := int(submissionID.Int64)
			run.SubmissionID = &id
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
