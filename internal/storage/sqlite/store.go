// Package sqlite keeps compiled scenario assets in a SQLite database so a
// project can ship one file holding every build of its dialogue.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/AaronLay10/SentientDialogue/internal/scenario"
)

//go:embed schema.sql
var schema string

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrAssetExists   = errors.New("asset already exists")
)

// AssetInfo summarizes a stored asset without decoding its body.
type AssetInfo struct {
	Name      string
	Format    int
	Scenarios int
	Lines     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists compiled assets in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateAsset stores asset under name and fails with ErrAssetExists if the
// name is taken.
func (s *Store) CreateAsset(ctx context.Context, name string, asset *scenario.Asset) error {
	return s.write(ctx, name, asset, false)
}

// PutAsset stores asset under name, replacing any previous build.
func (s *Store) PutAsset(ctx context.Context, name string, asset *scenario.Asset) error {
	return s.write(ctx, name, asset, true)
}

func (s *Store) write(ctx context.Context, name string, asset *scenario.Asset, replace bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("asset name is required")
	}
	if asset == nil {
		return fmt.Errorf("asset is required")
	}

	var body bytes.Buffer
	if err := asset.Write(&body); err != nil {
		return fmt.Errorf("encode asset %s: %w", name, err)
	}
	lines := 0
	for _, sc := range asset.Scenarios {
		lines += len(sc.Lines)
	}
	now := toMillis(time.Now())

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := `INSERT INTO assets (name, format, scenario_count, line_count, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`
	if replace {
		insert += ` ON CONFLICT(name) DO UPDATE SET
		   format = excluded.format,
		   scenario_count = excluded.scenario_count,
		   line_count = excluded.line_count,
		   body = excluded.body,
		   updated_at = excluded.updated_at`
	}
	if _, err := tx.ExecContext(ctx, insert, name, asset.Version, len(asset.Scenarios), lines, body.Bytes(), now, now); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrAssetExists, name)
		}
		return fmt.Errorf("insert asset %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_scenarios WHERE asset_name = ?`, name); err != nil {
		return fmt.Errorf("clear scenarios of %s: %w", name, err)
	}
	for _, sc := range asset.Scenarios {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO asset_scenarios (asset_name, scenario_id, line_count) VALUES (?, ?, ?)`,
			name, sc.ID, len(sc.Lines)); err != nil {
			return fmt.Errorf("index scenario %d of %s: %w", sc.ID, name, err)
		}
	}
	return tx.Commit()
}

// GetAsset decodes the asset stored under name.
func (s *Store) GetAsset(ctx context.Context, name string) (*scenario.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var body []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT body FROM assets WHERE name = ?`, strings.TrimSpace(name)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", name, err)
	}
	asset, err := scenario.ReadAsset(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode asset %s: %w", name, err)
	}
	return asset, nil
}

// LoadStore returns a finalized store built from the asset under name.
func (s *Store) LoadStore(ctx context.Context, name string) (*scenario.Store, error) {
	asset, err := s.GetAsset(ctx, name)
	if err != nil {
		return nil, err
	}
	store, _, err := asset.Store()
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", name, err)
	}
	return store, nil
}

// ListAssets returns every stored asset ordered by name.
func (s *Store) ListAssets(ctx context.Context) ([]AssetInfo, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT name, format, scenario_count, line_count, created_at, updated_at
		 FROM assets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []AssetInfo
	for rows.Next() {
		var info AssetInfo
		var created, updated int64
		if err := rows.Scan(&info.Name, &info.Format, &info.Scenarios, &info.Lines, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		info.CreatedAt = fromMillis(created)
		info.UpdatedAt = fromMillis(updated)
		out = append(out, info)
	}
	return out, rows.Err()
}

// FindScenario returns the names of assets that contain scenario id.
func (s *Store) FindScenario(ctx context.Context, id int) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT asset_name FROM asset_scenarios WHERE scenario_id = ? ORDER BY asset_name`, id)
	if err != nil {
		return nil, fmt.Errorf("find scenario %d: %w", id, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteAsset removes the asset under name.
func (s *Store) DeleteAsset(ctx context.Context, name string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM assets WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("delete asset %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, name)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
