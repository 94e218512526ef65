package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
	"github.com/journeygrid/journeygrid/internal/domain/repository"
)

const journeyColumns = `
	id, name, description, journal_id, visibility, owner_id,
	created_at, updated_at, is_dirty, synced_at
`

// JourneyRepositoryImpl implements repository.JourneyRepository with SQLite.
// Nodes and edges live in their own tables and are rewritten on every Put.
type JourneyRepositoryImpl struct {
	db *sql.DB
}

// NewJourneyRepository creates a new SQLite-based journey repository
func NewJourneyRepository(db *sql.DB) repository.JourneyRepository {
	return &JourneyRepositoryImpl{db: db}
}

// Put inserts or fully replaces a journey with its nodes and edges
func (r *JourneyRepositoryImpl) Put(ctx context.Context, rec *journey.Record) error {
	return inTx(ctx, r.db, func(db dbExecutor) error {
		query := `
			INSERT INTO journeys (` + journeyColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				journal_id = excluded.journal_id,
				visibility = excluded.visibility,
				owner_id = excluded.owner_id,
				created_at = excluded.created_at,
				updated_at = excluded.updated_at,
				is_dirty = excluded.is_dirty,
				synced_at = excluded.synced_at
		`
		_, err := db.ExecContext(ctx, query,
			rec.ID, rec.Name, rec.Description, nullString(rec.JournalID), string(rec.Visibility), rec.OwnerID,
			formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt), boolToInt(rec.IsDirty), formatNullTime(rec.SyncedAt),
		)
		if err != nil {
			return fmt.Errorf("save journey failed: %w", err)
		}

		if err := r.replaceGraph(ctx, db, rec.ID, rec.Graph()); err != nil {
			return fmt.Errorf("save journey graph failed: %w", err)
		}
		return nil
	})
}

// Get retrieves a journey by ID
func (r *JourneyRepositoryImpl) Get(ctx context.Context, id string) (*journey.Record, error) {
	db := executor(ctx, r.db)
	rec, err := scanJourney(db.QueryRowContext(ctx, "SELECT "+journeyColumns+" FROM journeys WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("journey %s: %w", id, repository.ErrNotFound)
		}
		return nil, err
	}
	if err := r.loadGraph(ctx, db, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetAll retrieves every journey, most recently updated first
func (r *JourneyRepositoryImpl) GetAll(ctx context.Context) ([]*journey.Record, error) {
	return r.list(ctx, "ORDER BY updated_at DESC, id DESC")
}

// GetDirty retrieves journeys with unpushed local changes
func (r *JourneyRepositoryImpl) GetDirty(ctx context.Context) ([]*journey.Record, error) {
	return r.list(ctx, "WHERE is_dirty = 1 ORDER BY updated_at DESC, id DESC")
}

// GetUnsynced retrieves journeys that were never pushed
func (r *JourneyRepositoryImpl) GetUnsynced(ctx context.Context) ([]*journey.Record, error) {
	return r.list(ctx, "WHERE synced_at IS NULL ORDER BY updated_at DESC, id DESC")
}

// FindByJournalID retrieves journeys referencing journalID directly or from a node
func (r *JourneyRepositoryImpl) FindByJournalID(ctx context.Context, journalID string) ([]*journey.Record, error) {
	return r.list(ctx, `
		WHERE journal_id = ?
		   OR id IN (SELECT journey_id FROM journey_nodes WHERE journal_id = ?)
		ORDER BY updated_at DESC, id DESC
	`, journalID, journalID)
}

// Delete removes a journey; nodes and edges cascade
func (r *JourneyRepositoryImpl) Delete(ctx context.Context, id string) error {
	db := executor(ctx, r.db)
	result, err := db.ExecContext(ctx, "DELETE FROM journeys WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete journey failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected failed: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("journey %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

// list loads journey rows first and their graphs afterwards, so no result
// set is held open while the child tables are queried
func (r *JourneyRepositoryImpl) list(ctx context.Context, clause string, args ...interface{}) ([]*journey.Record, error) {
	db := executor(ctx, r.db)
	rows, err := db.QueryContext(ctx, "SELECT "+journeyColumns+" FROM journeys "+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("list journeys failed: %w", err)
	}

	var records []*journey.Record
	for rows.Next() {
		rec, err := scanJourney(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate journeys failed: %w", err)
	}
	rows.Close()

	for _, rec := range records {
		if err := r.loadGraph(ctx, db, rec); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func scanJourney(row rowScanner) (*journey.Record, error) {
	var (
		rec        journey.Record
		journalID  sql.NullString
		visibility string
		createdAt  string
		updatedAt  string
		isDirty    int
		syncedAt   sql.NullString
	)

	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Description, &journalID, &visibility, &rec.OwnerID,
		&createdAt, &updatedAt, &isDirty, &syncedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan journey failed: %w", err)
	}

	rec.JournalID = journalID.String
	rec.Visibility = journey.Visibility(visibility)
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

// loadGraph fills rec's nodes and edges in stored order
func (r *JourneyRepositoryImpl) loadGraph(ctx context.Context, db dbExecutor, rec *journey.Record) error {
	nodeRows, err := db.QueryContext(ctx, `
		SELECT id, type, pos_x, pos_y, width, height, label, description, icon, status, journal_id
		FROM journey_nodes
		WHERE journey_id = ?
		ORDER BY ord
	`, rec.ID)
	if err != nil {
		return fmt.Errorf("query journey nodes failed: %w", err)
	}
	defer nodeRows.Close()

	rec.Nodes = []journey.Node{}
	for nodeRows.Next() {
		var (
			n             journey.Node
			nodeType      string
			status        string
			width, height sql.NullFloat64
			journalID     sql.NullString
		)
		if err := nodeRows.Scan(&n.ID, &nodeType, &n.Position.X, &n.Position.Y, &width, &height,
			&n.Label, &n.Description, &n.Icon, &status, &journalID); err != nil {
			return fmt.Errorf("scan journey node failed: %w", err)
		}
		n.Type = journey.NodeType(nodeType)
		n.Status = journey.NodeStatus(status)
		n.JournalID = journalID.String
		if width.Valid && height.Valid {
			n.Size = &journey.Size{Width: width.Float64, Height: height.Float64}
		}
		rec.Nodes = append(rec.Nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return fmt.Errorf("iterate journey nodes failed: %w", err)
	}
	nodeRows.Close()

	edgeRows, err := db.QueryContext(ctx, `
		SELECT id, source_id, target_id, type
		FROM journey_edges
		WHERE journey_id = ?
		ORDER BY ord
	`, rec.ID)
	if err != nil {
		return fmt.Errorf("query journey edges failed: %w", err)
	}
	defer edgeRows.Close()

	rec.Edges = []journey.Edge{}
	for edgeRows.Next() {
		var e journey.Edge
		if err := edgeRows.Scan(&e.ID, &e.Source, &e.Target, &e.Type); err != nil {
			return fmt.Errorf("scan journey edge failed: %w", err)
		}
		rec.Edges = append(rec.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return fmt.Errorf("iterate journey edges failed: %w", err)
	}
	return nil
}

// replaceGraph rewrites the node and edge tables for one journey
func (r *JourneyRepositoryImpl) replaceGraph(ctx context.Context, db dbExecutor, journeyID string, g journey.Graph) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM journey_edges WHERE journey_id = ?", journeyID); err != nil {
		return fmt.Errorf("delete old edges failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM journey_nodes WHERE journey_id = ?", journeyID); err != nil {
		return fmt.Errorf("delete old nodes failed: %w", err)
	}

	for i, n := range g.Nodes {
		var width, height sql.NullFloat64
		if n.Size != nil {
			width = sql.NullFloat64{Float64: n.Size.Width, Valid: true}
			height = sql.NullFloat64{Float64: n.Size.Height, Valid: true}
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO journey_nodes (journey_id, id, ord, type, pos_x, pos_y, width, height,
			                           label, description, icon, status, journal_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			journeyID, n.ID, i, string(n.Type), n.Position.X, n.Position.Y, width, height,
			n.Label, n.Description, n.Icon, string(n.Status), nullString(n.JournalID),
		)
		if err != nil {
			return fmt.Errorf("insert node %s failed: %w", n.ID, err)
		}
	}

	for i, e := range g.Edges {
		_, err := db.ExecContext(ctx, `
			INSERT INTO journey_edges (journey_id, id, ord, source_id, target_id, type)
			VALUES (?, ?, ?, ?, ?, ?)
		`, journeyID, e.ID, i, e.Source, e.Target, e.Type)
		if err != nil {
			return fmt.Errorf("insert edge %s failed: %w", e.ID, err)
		}
	}
	return nil
}
