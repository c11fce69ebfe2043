package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/launchpadtt/phabricator/internal/config"
)

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the catalog database location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// CreateParams describes a repository to register.
type CreateParams struct {
	Name        string
	DisplayName string
	VCS         VCS
	RemoteURI   string
	// PullInterval in seconds; zero defers to the global minimum.
	PullInterval int
	Untracked    bool
}

// Create registers a new repository and returns the stored record.
func (s *Store) Create(ctx context.Context, params CreateParams) (*Repository, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, errors.New("repository name is required")
	}
	if _, ok := ParseVCS(string(params.VCS)); !ok {
		return nil, fmt.Errorf("unsupported vcs %q", params.VCS)
	}
	uri := strings.TrimSpace(params.RemoteURI)
	if uri == "" {
		return nil, errors.New("remote uri is required")
	}
	interval := params.PullInterval
	if interval < 0 {
		interval = 0
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	phid := "PHID-REPO-" + uuid.NewString()

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO repositories (
            phid, name, display_name, vcs, remote_uri, tracked, pull_interval,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		phid,
		name,
		strings.TrimSpace(params.DisplayName),
		string(params.VCS),
		uri,
		boolToInt(!params.Untracked),
		interval,
		timestamp,
		timestamp,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, name)
		}
		return nil, fmt.Errorf("insert repository: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a repository by identifier. Missing rows yield (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Repository, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+repositoryColumns+` FROM repositories WHERE id = ?`, id)
	repo, err := scanRepository(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}
	return repo, nil
}

// GetByName fetches a repository by catalog name. Missing rows yield (nil, nil).
func (s *Store) GetByName(ctx context.Context, name string) (*Repository, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+repositoryColumns+` FROM repositories WHERE name = ?`, strings.TrimSpace(name))
	repo, err := scanRepository(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository by name: %w", err)
	}
	return repo, nil
}

// MustGetByName fetches a repository by name, returning ErrNotFound when the
// name does not resolve.
func (s *Store) MustGetByName(ctx context.Context, name string) (*Repository, error) {
	repo, err := s.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, strings.TrimSpace(name))
	}
	return repo, nil
}

// List returns all repositories in catalog order.
func (s *Store) List(ctx context.Context) ([]*Repository, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+repositoryColumns+` FROM repositories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []*Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

// Resolve loads repositories by name, preserving catalog order. An empty
// name list resolves to every repository. Any name that does not exist in
// the catalog produces ErrNotFound; callers pass operator-supplied names
// and must not silently skip typos.
func (s *Store) Resolve(ctx context.Context, names []string) ([]*Repository, error) {
	if len(names) == 0 {
		return s.List(ctx)
	}

	trimmed := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		trimmed = append(trimmed, name)
	}
	if len(trimmed) == 0 {
		return nil, nil
	}

	placeholders := makePlaceholders(len(trimmed))
	args := make([]any, len(trimmed))
	for i, name := range trimmed {
		args[i] = name
	}
	query := `SELECT ` + repositoryColumns + ` FROM repositories WHERE name IN (` + placeholders + `) ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve repositories: %w", err)
	}
	defer rows.Close()

	found := make(map[string]struct{}, len(trimmed))
	var repos []*Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		found[repo.Name] = struct{}{}
		repos = append(repos, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, name := range trimmed {
		if _, ok := found[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
	}
	return repos, nil
}

// SetTracked toggles the tracked flag for a repository.
func (s *Store) SetTracked(ctx context.Context, id int64, tracked bool) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE repositories SET tracked = ?, updated_at = ? WHERE id = ?`,
		boolToInt(tracked),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set tracked: %w", err)
	}
	return nil
}

// Remove deletes a repository and its bookkeeping rows.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM repositories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete repository: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const repositoryColumns = "id, phid, name, display_name, vcs, remote_uri, tracked, pull_interval, created_at, updated_at"

func scanRepository(scanner interface{ Scan(dest ...any) error }) (*Repository, error) {
	var (
		id           int64
		phid         string
		name         string
		displayName  sql.NullString
		vcsStr       string
		remoteURI    string
		tracked      sql.NullInt64
		pullInterval sql.NullInt64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&phid,
		&name,
		&displayName,
		&vcsStr,
		&remoteURI,
		&tracked,
		&pullInterval,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	repo := &Repository{
		ID:          id,
		PHID:        phid,
		Name:        name,
		DisplayName: displayName.String,
		VCS:         VCS(vcsStr),
		RemoteURI:   remoteURI,
	}
	if tracked.Valid {
		repo.Tracked = tracked.Int64 != 0
	}
	if pullInterval.Valid {
		repo.PullInterval = int(pullInterval.Int64)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		repo.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		repo.UpdatedAt = updated
	}
	return repo, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
