// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/dropstats/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

var (
	// ErrNotFound is returned when an item or stage does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoPersonalData is returned when the personal source is requested
	// before any personal upload.
	ErrNoPersonalData = errors.New("no personal drop data uploaded yet")
)

// Store wraps SQLite access for drop data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chapters (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			position INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS stages (
			id TEXT PRIMARY KEY,
			chapter_id TEXT NOT NULL,
			code TEXT NOT NULL,
			category TEXT NOT NULL,
			stage_type TEXT NOT NULL,
			ap_cost REAL NOT NULL,
			position INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			sort_id INTEGER NOT NULL,
			item_type TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS drop_records (
			source TEXT NOT NULL,
			stage_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			times INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			PRIMARY KEY (source, stage_id, item_id)
		);`,
		`CREATE TABLE IF NOT EXISTS uploads (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			created_at TEXT NOT NULL,
			records INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_drop_records_item ON drop_records(source, item_id);`,
		`CREATE INDEX IF NOT EXISTS idx_stages_chapter ON stages(chapter_id, position);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceDataset replaces chapters, stages, items and global drop records.
// Personal drop records are kept. progress, when non-nil, is called once per
// written matrix entry.
func (s *Store) ReplaceDataset(ctx context.Context, ds model.Dataset, progress func()) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	for _, stmt := range []string{
		`DELETE FROM chapters`,
		`DELETE FROM stages`,
		`DELETE FROM items`,
	} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM drop_records WHERE source = ?`, string(model.SourceGlobal)); err != nil {
		return err
	}

	for ci, ch := range ds.Chapters {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chapters (id, name, type, position) VALUES (?, ?, ?, ?)`,
			ch.ID, ch.Name, ch.Type, ci,
		); err != nil {
			return fmt.Errorf("insert chapter %s: %w", ch.ID, err)
		}
		for si, st := range ch.Stages {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO stages (id, chapter_id, code, category, stage_type, ap_cost, position) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				st.ID, ch.ID, st.Code, st.Category, st.StageType, st.APCost, si,
			); err != nil {
				return fmt.Errorf("insert stage %s: %w", st.ID, err)
			}
		}
	}
	for _, it := range ds.Items {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO items (id, name, sort_id, item_type) VALUES (?, ?, ?, ?)`,
			it.ID, it.Name, it.SortID, it.ItemType,
		); err != nil {
			return fmt.Errorf("insert item %s: %w", it.ID, err)
		}
	}
	if err = insertMatrix(ctx, tx, model.SourceGlobal, ds.Matrix, progress); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplacePersonal replaces the personal drop records and records the upload.
func (s *Store) ReplacePersonal(ctx context.Context, entries []model.MatrixEntry) (upload model.Upload, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Upload{}, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM drop_records WHERE source = ?`, string(model.SourcePersonal)); err != nil {
		return model.Upload{}, err
	}
	if err = insertMatrix(ctx, tx, model.SourcePersonal, entries, nil); err != nil {
		return model.Upload{}, err
	}
	upload = model.Upload{
		ID:        uuid.New().String(),
		Source:    model.SourcePersonal,
		CreatedAt: time.Now().UTC(),
		Records:   len(entries),
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO uploads (id, source, created_at, records) VALUES (?, ?, ?, ?)`,
		upload.ID, string(upload.Source), upload.CreatedAt.Format(time.RFC3339Nano), upload.Records,
	); err != nil {
		return model.Upload{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Upload{}, err
	}
	return upload, nil
}

func insertMatrix(ctx context.Context, tx *sql.Tx, source model.DataSource, entries []model.MatrixEntry, progress func()) error {
	if len(entries) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO drop_records (source, stage_id, item_id, times, quantity)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, string(source), e.StageID, e.ItemID, e.Times, e.Quantity); err != nil {
			return fmt.Errorf("insert drop record %s/%s: %w", e.StageID, e.ItemID, err)
		}
		if progress != nil {
			progress()
		}
	}
	return nil
}

// HasPersonalData reports whether any personal drop records exist.
func (s *Store) HasPersonalData(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM drop_records WHERE source = ?`, string(model.SourcePersonal),
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LatestUpload returns the most recent upload for source.
func (s *Store) LatestUpload(ctx context.Context, source model.DataSource) (model.Upload, error) {
	var up model.Upload
	var src, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, created_at, records FROM uploads WHERE source = ? ORDER BY created_at DESC LIMIT 1`,
		string(source),
	).Scan(&up.ID, &src, &createdAt, &up.Records)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Upload{}, ErrNotFound
	}
	if err != nil {
		return model.Upload{}, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return model.Upload{}, err
	}
	up.Source = model.DataSource(src)
	up.CreatedAt = parsed
	return up, nil
}

// ListItems returns all items ordered by sort ID.
func (s *Store) ListItems(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, sort_id, item_type FROM items ORDER BY sort_id ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var items []model.Item
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.SortID, &it.ItemType); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// ListChapters returns chapters with their stages in dataset order.
func (s *Store) ListChapters(ctx context.Context) ([]model.Chapter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.type, st.id, st.code, st.category, st.stage_type, st.ap_cost
		 FROM chapters c
		 LEFT JOIN stages st ON st.chapter_id = c.id
		 ORDER BY c.position ASC, st.position ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var chapters []model.Chapter
	for rows.Next() {
		var ch model.Chapter
		var stageID, code, category, stageType sql.NullString
		var apCost sql.NullFloat64
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Type, &stageID, &code, &category, &stageType, &apCost); err != nil {
			return nil, err
		}
		if len(chapters) == 0 || chapters[len(chapters)-1].ID != ch.ID {
			chapters = append(chapters, ch)
		}
		if !stageID.Valid {
			continue
		}
		last := &chapters[len(chapters)-1]
		last.Stages = append(last.Stages, model.Stage{
			ID:        stageID.String,
			Code:      code.String,
			Category:  category.String,
			StageType: stageType.String,
			APCost:    apCost.Float64,
			ChapterID: ch.ID,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return chapters, nil
}

// GetItem returns a single item.
func (s *Store) GetItem(ctx context.Context, id string) (model.Item, error) {
	var it model.Item
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, sort_id, item_type FROM items WHERE id = ?`, id,
	).Scan(&it.ID, &it.Name, &it.SortID, &it.ItemType)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, fmt.Errorf("item %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Item{}, err
	}
	return it, nil
}

// GetStage returns a single stage.
func (s *Store) GetStage(ctx context.Context, id string) (model.Stage, error) {
	var st model.Stage
	err := s.db.QueryRowContext(ctx,
		`SELECT id, chapter_id, code, category, stage_type, ap_cost FROM stages WHERE id = ?`, id,
	).Scan(&st.ID, &st.ChapterID, &st.Code, &st.Category, &st.StageType, &st.APCost)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Stage{}, fmt.Errorf("stage %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Stage{}, err
	}
	return st, nil
}

// ItemResult loads the drop records of one item from source.
func (s *Store) ItemResult(ctx context.Context, source model.DataSource, itemID string) (model.ItemResult, error) {
	if err := s.checkSource(ctx, source); err != nil {
		return model.ItemResult{}, err
	}
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return model.ItemResult{}, err
	}
	drops, err := s.queryDrops(ctx, `WHERE d.source = ? AND d.item_id = ?`, string(source), itemID)
	if err != nil {
		return model.ItemResult{}, err
	}
	return model.ItemResult{Item: item, Drops: drops}, nil
}

// StageResult loads the drop records of one stage from source.
func (s *Store) StageResult(ctx context.Context, source model.DataSource, stageID string) (model.StageResult, error) {
	if err := s.checkSource(ctx, source); err != nil {
		return model.StageResult{}, err
	}
	stage, err := s.GetStage(ctx, stageID)
	if err != nil {
		return model.StageResult{}, err
	}
	drops, err := s.queryDrops(ctx, `WHERE d.source = ? AND d.stage_id = ?`, string(source), stageID)
	if err != nil {
		return model.StageResult{}, err
	}
	return model.StageResult{Stage: stage, Drops: drops}, nil
}

func (s *Store) checkSource(ctx context.Context, source model.DataSource) error {
	switch source {
	case model.SourceGlobal:
		return nil
	case model.SourcePersonal:
		ok, err := s.HasPersonalData(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoPersonalData
		}
		return nil
	default:
		return fmt.Errorf("unknown data source %q", source)
	}
}

func (s *Store) queryDrops(ctx context.Context, where string, args ...any) ([]model.DropRecord, error) {
	query := `SELECT st.id, st.chapter_id, st.code, st.category, st.stage_type, st.ap_cost,
		it.id, it.name, it.sort_id, it.item_type, d.times, d.quantity
		FROM drop_records d
		JOIN stages st ON st.id = d.stage_id
		JOIN items it ON it.id = d.item_id
		` + where + `
		ORDER BY st.id ASC, it.id ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	stages := map[string]*model.Stage{}
	items := map[string]*model.Item{}
	var drops []model.DropRecord
	for rows.Next() {
		var st model.Stage
		var it model.Item
		var rec model.DropRecord
		if err := rows.Scan(&st.ID, &st.ChapterID, &st.Code, &st.Category, &st.StageType, &st.APCost,
			&it.ID, &it.Name, &it.SortID, &it.ItemType, &rec.Times, &rec.Quantity); err != nil {
			return nil, err
		}
		if cached, ok := stages[st.ID]; ok {
			rec.Stage = cached
		} else {
			stCopy := st
			stages[st.ID] = &stCopy
			rec.Stage = &stCopy
		}
		if cached, ok := items[it.ID]; ok {
			rec.Item = cached
		} else {
			itCopy := it
			items[it.ID] = &itCopy
			rec.Item = &itCopy
		}
		drops = append(drops, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return drops, nil
}
