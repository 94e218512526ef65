package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/repository"
)

const journalColumns = `id, title, content, owner_id, created_at, updated_at, is_dirty, synced_at`

// JournalRepositoryImpl implements repository.JournalRepository with SQLite
type JournalRepositoryImpl struct {
	db *sql.DB
}

// NewJournalRepository creates a new SQLite-based journal repository
func NewJournalRepository(db *sql.DB) repository.JournalRepository {
	return &JournalRepositoryImpl{db: db}
}

// Put inserts or fully replaces a journal
func (r *JournalRepositoryImpl) Put(ctx context.Context, rec *journal.Record) error {
	query := `
		INSERT INTO journals (` + journalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			owner_id = excluded.owner_id,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			is_dirty = excluded.is_dirty,
			synced_at = excluded.synced_at
	`

	db := executor(ctx, r.db)
	_, err := db.ExecContext(ctx, query,
		rec.ID, rec.Title, rec.Content, rec.OwnerID,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt), boolToInt(rec.IsDirty), formatNullTime(rec.SyncedAt),
	)
	if err != nil {
		return fmt.Errorf("save journal failed: %w", err)
	}
	return nil
}

// Get retrieves a journal by ID
func (r *JournalRepositoryImpl) Get(ctx context.Context, id string) (*journal.Record, error) {
	db := executor(ctx, r.db)
	rec, err := scanJournal(db.QueryRowContext(ctx, "SELECT "+journalColumns+" FROM journals WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("journal %s: %w", id, repository.ErrNotFound)
		}
		return nil, err
	}
	return rec, nil
}

// GetAll retrieves every journal, most recently updated first
func (r *JournalRepositoryImpl) GetAll(ctx context.Context) ([]*journal.Record, error) {
	return r.list(ctx, "ORDER BY updated_at DESC, id DESC")
}

// GetDirty retrieves journals with unpushed local changes
func (r *JournalRepositoryImpl) GetDirty(ctx context.Context) ([]*journal.Record, error) {
	return r.list(ctx, "WHERE is_dirty = 1 ORDER BY updated_at DESC, id DESC")
}

// GetUnsynced retrieves journals that were never pushed
func (r *JournalRepositoryImpl) GetUnsynced(ctx context.Context) ([]*journal.Record, error) {
	return r.list(ctx, "WHERE synced_at IS NULL ORDER BY updated_at DESC, id DESC")
}

// Delete removes a journal
func (r *JournalRepositoryImpl) Delete(ctx context.Context, id string) error {
	db := executor(ctx, r.db)
	result, err := db.ExecContext(ctx, "DELETE FROM journals WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete journal failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected failed: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("journal %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *JournalRepositoryImpl) list(ctx context.Context, clause string) ([]*journal.Record, error) {
	db := executor(ctx, r.db)
	rows, err := db.QueryContext(ctx, "SELECT "+journalColumns+" FROM journals "+clause)
	if err != nil {
		return nil, fmt.Errorf("list journals failed: %w", err)
	}
	defer rows.Close()

	var records []*journal.Record
	for rows.Next() {
		rec, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journals failed: %w", err)
	}
	return records, nil
}

func scanJournal(row rowScanner) (*journal.Record, error) {
	var (
		rec       journal.Record
		createdAt string
		updatedAt string
		isDirty   int
		syncedAt  sql.NullString
	)

	err := row.Scan(&rec.ID, &rec.Title, &rec.Content, &rec.OwnerID, &createdAt, &updatedAt, &isDirty, &syncedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan journal failed: %w", err)
	}

	rec.IsDirty = isDirty != 0
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at failed: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at failed: %w", err)
	}
	if rec.SyncedAt, err = parseNullTime(syncedAt); err != nil {
		return nil, fmt.Errorf("parse synced_at failed: %w", err)
	}
	return &rec, nil
}
