package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"buildwatch/src/contracts"
)

// CurrentSchemaVersion is bumped whenever the tables below change.
const CurrentSchemaVersion = 1

// dialect captures the differences between the SQL backends.
type dialect struct {
	name string
	// dollar placeholders ($1, $2) instead of ?
	dollar bool
	// seqColumn is the auto-incrementing primary key definition.
	seqColumn string
}

var (
	postgresDialect = dialect{name: "postgres", dollar: true, seqColumn: "seq BIGSERIAL PRIMARY KEY"}
	sqliteDialect   = dialect{name: "sqlite", seqColumn: "seq INTEGER PRIMARY KEY AUTOINCREMENT"}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlStore implements Store on database/sql for any supported dialect.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

func (s *sqlStore) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS diagnostics (
			id TEXT PRIMARY KEY,
			ts_unix_nano BIGINT NOT NULL,
			code TEXT NOT NULL,
			message TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_diagnostics_ts ON diagnostics(ts_unix_nano)`,
		`CREATE TABLE IF NOT EXISTS transitions (
			` + s.dialect.seqColumn + `,
			build_id TEXT NOT NULL,
			organization TEXT NOT NULL,
			pipeline TEXT NOT NULL,
			pipeline_name TEXT NOT NULL,
			number INTEGER NOT NULL,
			branch TEXT NOT NULL,
			web_url TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			title TEXT NOT NULL,
			subtitle TEXT NOT NULL,
			body TEXT NOT NULL,
			observed_unix_nano BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_build ON transitions(build_id)`,
	}
}

// migrate creates the tables and records the schema version.
func (s *sqlStore) migrate(ctx context.Context) error {
	for _, ddl := range s.schema() {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	version, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, CurrentSchemaVersion)
	}
	if version == CurrentSchemaVersion {
		return nil
	}

	_, err = s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO schema_version (version) VALUES (?) ON CONFLICT (version) DO NOTHING`), CurrentSchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

func (s *sqlStore) schemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// RecordDiagnostic saves a diagnostic entry. Entries already stored are ignored.
func (s *sqlStore) RecordDiagnostic(ctx context.Context, event contracts.DiagnosticEvent) error {
	query := s.dialect.rebind(`
		INSERT INTO diagnostics (id, ts_unix_nano, code, message, detail, level)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`)

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp.UnixNano(),
		event.Code,
		event.Message,
		event.Detail,
		event.Level,
	)
	if err != nil {
		return fmt.Errorf("failed to record diagnostic: %w", err)
	}
	return nil
}

// RecentDiagnostics returns up to limit entries, newest first.
func (s *sqlStore) RecentDiagnostics(ctx context.Context, limit int) ([]contracts.DiagnosticEvent, error) {
	query := s.dialect.rebind(`
		SELECT id, ts_unix_nano, code, message, detail, level
		FROM diagnostics
		ORDER BY ts_unix_nano DESC, id DESC
		LIMIT ?
	`)

	rows, err := s.db.QueryContext(ctx, query, queryLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostics: %w", err)
	}
	defer rows.Close()

	var events []contracts.DiagnosticEvent
	for rows.Next() {
		var event contracts.DiagnosticEvent
		var ts int64
		if err := rows.Scan(&event.ID, &ts, &event.Code, &event.Message, &event.Detail, &event.Level); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		event.Timestamp = time.Unix(0, ts).UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating diagnostics: %w", err)
	}
	return events, nil
}

// RecordTransition saves a build state transition.
func (s *sqlStore) RecordTransition(ctx context.Context, event contracts.TransitionEvent) error {
	query := s.dialect.rebind(`
		INSERT INTO transitions (
			build_id, organization, pipeline, pipeline_name, number, branch, web_url,
			from_state, to_state, title, subtitle, body, observed_unix_nano
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		event.BuildID,
		event.Organization,
		event.Pipeline,
		event.PipelineName,
		event.Number,
		event.Branch,
		event.WebURL,
		event.FromState,
		event.ToState,
		event.Title,
		event.Subtitle,
		event.Body,
		event.ObservedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

// RecentTransitions returns up to limit transitions, newest first.
func (s *sqlStore) RecentTransitions(ctx context.Context, limit int) ([]contracts.TransitionEvent, error) {
	query := s.dialect.rebind(`
		SELECT build_id, organization, pipeline, pipeline_name, number, branch, web_url,
			from_state, to_state, title, subtitle, body, observed_unix_nano
		FROM transitions
		ORDER BY seq DESC
		LIMIT ?
	`)

	rows, err := s.db.QueryContext(ctx, query, queryLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var events []contracts.TransitionEvent
	for rows.Next() {
		var event contracts.TransitionEvent
		var observed int64
		err := rows.Scan(
			&event.BuildID,
			&event.Organization,
			&event.Pipeline,
			&event.PipelineName,
			&event.Number,
			&event.Branch,
			&event.WebURL,
			&event.FromState,
			&event.ToState,
			&event.Title,
			&event.Subtitle,
			&event.Body,
			&observed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		event.ObservedAt = time.Unix(0, observed).UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}
	return events, nil
}

// Prune keeps the newest keep rows of each table.
func (s *sqlStore) Prune(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin prune: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`DELETE FROM diagnostics WHERE id NOT IN (
			SELECT id FROM diagnostics ORDER BY ts_unix_nano DESC, id DESC LIMIT ?
		)`,
		`DELETE FROM transitions WHERE seq NOT IN (
			SELECT seq FROM transitions ORDER BY seq DESC LIMIT ?
		)`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(stmt), keep); err != nil {
			return fmt.Errorf("failed to prune: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prune: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// queryLimit maps non-positive limits to "everything". Postgres rejects a
// negative LIMIT, so the sentinel is a large positive value.
func queryLimit(limit int) int {
	if limit <= 0 {
		return math.MaxInt32
	}
	return limit
}
