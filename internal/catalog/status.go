package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// SetStatus writes the status row for (repositoryID, statusType), replacing
// any previous row of the same type.
func (s *Store) SetStatus(ctx context.Context, repositoryID int64, statusType StatusType, code StatusCode, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO repository_status (repository_id, type, code, message, epoch)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (repository_id, type)
         DO UPDATE SET code = excluded.code, message = excluded.message, epoch = excluded.epoch`,
		repositoryID,
		string(statusType),
		string(code),
		message,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("set status %s: %w", statusType, err)
	}
	return nil
}

// ClearStatus removes the status row of the given type, if present.
func (s *Store) ClearStatus(ctx context.Context, repositoryID int64, statusType StatusType) error {
	_, err := s.db.ExecContext(
		ctx,
		`DELETE FROM repository_status WHERE repository_id = ? AND type = ?`,
		repositoryID,
		string(statusType),
	)
	if err != nil {
		return fmt.Errorf("clear status %s: %w", statusType, err)
	}
	return nil
}

// StatusFor returns the status row of the given type, or nil when absent.
func (s *Store) StatusFor(ctx context.Context, repositoryID int64, statusType StatusType) (*StatusMessage, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT repository_id, type, code, message, epoch FROM repository_status
         WHERE repository_id = ? AND type = ?`,
		repositoryID,
		string(statusType),
	)
	msg, err := scanStatusMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("status for %s: %w", statusType, err)
	}
	return msg, nil
}

// StatusMessages returns all status rows for a repository.
func (s *Store) StatusMessages(ctx context.Context, repositoryID int64) ([]StatusMessage, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT repository_id, type, code, message, epoch FROM repository_status
         WHERE repository_id = ? ORDER BY type`,
		repositoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("status messages: %w", err)
	}
	defer rows.Close()

	var messages []StatusMessage
	for rows.Next() {
		msg, err := scanStatusMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// RequestUpdate marks a repository for update ahead of its regular schedule
// and returns the epoch recorded on the request. Re-requesting refreshes the
// epoch so a sleeping daemon observes the new signal.
func (s *Store) RequestUpdate(ctx context.Context, repositoryID int64) (int64, error) {
	epoch := time.Now().Unix()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO repository_status (repository_id, type, code, message, epoch)
         VALUES (?, ?, ?, '', ?)
         ON CONFLICT (repository_id, type)
         DO UPDATE SET code = excluded.code, message = excluded.message, epoch = excluded.epoch`,
		repositoryID,
		string(StatusNeedsUpdate),
		string(CodeOkay),
		epoch,
	)
	if err != nil {
		return 0, fmt.Errorf("request update: %w", err)
	}
	return epoch, nil
}

// ClearUpdateRequest removes the pending needs-update signal, if any.
func (s *Store) ClearUpdateRequest(ctx context.Context, repositoryID int64) error {
	return s.ClearStatus(ctx, repositoryID, StatusNeedsUpdate)
}

// PendingUpdateRequests returns every outstanding needs-update signal.
func (s *Store) PendingUpdateRequests(ctx context.Context) ([]UpdateRequest, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT repository_id, epoch FROM repository_status WHERE type = ? ORDER BY repository_id`,
		string(StatusNeedsUpdate),
	)
	if err != nil {
		return nil, fmt.Errorf("pending update requests: %w", err)
	}
	defer rows.Close()

	var requests []UpdateRequest
	for rows.Next() {
		var req UpdateRequest
		if err := rows.Scan(&req.RepositoryID, &req.Epoch); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// PruneStatusMessages deletes fetch and init history rows recorded before
// cutoff. Pending needs-update signals are never pruned.
func (s *Store) PruneStatusMessages(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM repository_status WHERE type IN (?, ?) AND epoch < ?`,
		string(StatusFetch),
		string(StatusInit),
		cutoff.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune status messages: %w", err)
	}
	return res.RowsAffected()
}

// ReplaceRefCursors replaces the discovery watermark set for a repository.
func (s *Store) ReplaceRefCursors(ctx context.Context, repositoryID int64, cursors map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ref tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM repository_refs WHERE repository_id = ?`, repositoryID); err != nil {
		return fmt.Errorf("clear refs: %w", err)
	}
	for name, identifier := range cursors {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO repository_refs (repository_id, name, identifier) VALUES (?, ?, ?)`,
			repositoryID,
			name,
			identifier,
		); err != nil {
			return fmt.Errorf("insert ref %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit refs: %w", err)
	}
	return nil
}

// RefCursors returns the stored discovery watermarks for a repository.
func (s *Store) RefCursors(ctx context.Context, repositoryID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT name, identifier FROM repository_refs WHERE repository_id = ?`,
		repositoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("ref cursors: %w", err)
	}
	defer rows.Close()

	cursors := make(map[string]string)
	for rows.Next() {
		var name, identifier string
		if err := rows.Scan(&name, &identifier); err != nil {
			return nil, err
		}
		cursors[name] = identifier
	}
	return cursors, rows.Err()
}

// Summarize aggregates catalog counts for diagnostic output.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	summary := Summary{ByVCS: make(map[VCS]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT vcs, tracked, COUNT(1) FROM repositories GROUP BY vcs, tracked`)
	if err != nil {
		return Summary{}, fmt.Errorf("catalog summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			vcsStr  string
			tracked int
			count   int
		)
		if err := rows.Scan(&vcsStr, &tracked, &count); err != nil {
			return Summary{}, err
		}
		summary.Total += count
		summary.ByVCS[VCS(vcsStr)] += count
		if tracked != 0 {
			summary.Tracked += count
		}
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM repository_status WHERE type = ?`, string(StatusNeedsUpdate))
	if err := row.Scan(&summary.NeedsUpdate); err != nil {
		return Summary{}, fmt.Errorf("count pending requests: %w", err)
	}
	return summary, nil
}

// CheckHealth returns diagnostic information about the catalog database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("catalog database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat catalog database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("catalog database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("catalog database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping catalog database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'repositories'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			health.TableExists = false
		} else {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		colsRows, err := s.db.QueryContext(connCtx, "PRAGMA table_info(repositories)")
		if err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("table info: %w", err)
		}
		defer colsRows.Close()

		var columns []string
		for colsRows.Next() {
			var (
				cid     int
				name    string
				typeStr string
				notNull int
				dflt    any
				pk      int
			)
			if err := colsRows.Scan(&cid, &name, &typeStr, &notNull, &dflt, &pk); err != nil {
				health.Error = err.Error()
				return health, fmt.Errorf("scan table info: %w", err)
			}
			columns = append(columns, name)
		}
		if err := colsRows.Err(); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("iterate table info: %w", err)
		}

		expected := []string{"id", "phid", "name", "display_name", "vcs", "remote_uri", "tracked", "pull_interval", "created_at", "updated_at"}
		missing := make(map[string]struct{}, len(expected))
		for _, col := range expected {
			missing[col] = struct{}{}
		}
		for _, col := range columns {
			delete(missing, col)
		}
		for col := range missing {
			health.MissingColumns = append(health.MissingColumns, col)
		}

		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM repositories")
		if err := row.Scan(&health.TotalRepositories); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count repositories: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

func scanStatusMessage(scanner interface{ Scan(dest ...any) error }) (*StatusMessage, error) {
	var (
		repositoryID int64
		typeStr      string
		codeStr      string
		message      sql.NullString
		epoch        int64
	)
	if err := scanner.Scan(&repositoryID, &typeStr, &codeStr, &message, &epoch); err != nil {
		return nil, err
	}
	return &StatusMessage{
		RepositoryID: repositoryID,
		Type:         StatusType(typeStr),
		Code:         StatusCode(codeStr),
		Message:      message.String,
		Epoch:        epoch,
	}, nil
}
