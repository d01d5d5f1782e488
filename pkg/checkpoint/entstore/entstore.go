// Package entstore implements checkpoint.Store on top of an ent SQL dialect
// driver. It is database-agnostic and embedded by the sqlite and postgres
// drivers.
package entstore

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/dialect/sql/sqlgraph"
	"entgo.io/ent/schema/field"

	"github.com/papercomputeco/ragchat/pkg/checkpoint"
	"github.com/papercomputeco/ragchat/pkg/conversation"
)

// TableName is the checkpoints table.
const TableName = "checkpoints"

var columnNames = []string{"id", "parent_id", "thread_id", "seq", "next", "state", "created_at"}

// Table returns the schema of the checkpoints table. A unique index on
// (thread_id, seq) rejects a second writer racing for the same sequence.
func Table() *schema.Table {
	columns := []*schema.Column{
		{Name: "id", Type: field.TypeString, Size: 64},
		{Name: "parent_id", Type: field.TypeString, Size: 64, Nullable: true},
		{Name: "thread_id", Type: field.TypeString, Size: 255},
		{Name: "seq", Type: field.TypeInt},
		{Name: "next", Type: field.TypeString, Size: 64},
		{Name: "state", Type: field.TypeString, Size: math.MaxInt32},
		{Name: "created_at", Type: field.TypeTime},
	}

	return &schema.Table{
		Name:       TableName,
		Columns:    columns,
		PrimaryKey: []*schema.Column{columns[0]},
		Indexes: []*schema.Index{
			{Name: "checkpoint_thread_id_seq", Unique: true, Columns: []*schema.Column{columns[2], columns[3]}},
			{Name: "checkpoint_seq_created_at", Columns: []*schema.Column{columns[3], columns[6]}},
		},
	}
}

// Store provides checkpoint operations over an ent SQL driver.
type Store struct {
	Driver *entsql.Driver
}

// New wraps drv and runs the auto-migration for the checkpoints table.
func New(ctx context.Context, drv *entsql.Driver) (*Store, error) {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Create(ctx, Table()); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{Driver: drv}, nil
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.Driver.Dialect())
}

// Load returns the latest checkpoint of the thread.
func (s *Store) Load(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	cp, err := s.latest(ctx, s.Driver, threadID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, checkpoint.NotFoundError{ThreadID: threadID}
	}

	return cp, nil
}

// Append writes a new checkpoint inside a transaction. Losing a race on the
// (thread_id, seq) index surfaces as checkpoint.ErrConflict.
func (s *Store) Append(ctx context.Context, threadID string, state conversation.State, next string) (*checkpoint.Checkpoint, error) {
	tx, err := s.Driver.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	parent, err := s.latest(ctx, tx, threadID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	cp := checkpoint.New(threadID, parent, state, next)
	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

	query, args := s.builder().
		Insert(TableName).
		Columns(columnNames...).
		Values(cp.ID, cp.ParentID, cp.ThreadID, cp.Seq, cp.Next, string(stateJSON), cp.CreatedAt).
		Query()

	var res stdsql.Result
	if err := tx.Exec(ctx, query, args, &res); err != nil {
		_ = tx.Rollback()
		if sqlgraph.IsUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: thread %s seq %d", checkpoint.ErrConflict, threadID, cp.Seq)
		}
		return nil, fmt.Errorf("failed to insert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: thread %s seq %d", checkpoint.ErrConflict, threadID, cp.Seq)
		}
		return nil, fmt.Errorf("failed to commit checkpoint: %w", err)
	}

	return cp, nil
}

// History returns the thread's lineage, oldest first.
func (s *Store) History(ctx context.Context, threadID string) ([]*checkpoint.Checkpoint, error) {
	query, args := s.builder().
		Select(columnNames...).
		From(entsql.Table(TableName)).
		Where(entsql.EQ("thread_id", threadID)).
		OrderBy(entsql.Asc("seq")).
		Query()

	return s.scan(ctx, s.Driver, query, args)
}

// ListThreads returns thread IDs ordered by their first checkpoint.
func (s *Store) ListThreads(ctx context.Context) ([]string, error) {
	query, args := s.builder().
		Select("thread_id").
		From(entsql.Table(TableName)).
		Where(entsql.EQ("seq", 1)).
		OrderBy(entsql.Asc("created_at"), entsql.Asc("thread_id")).
		Query()

	var rows entsql.Rows
	if err := s.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	threads := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, id)
	}

	return threads, rows.Err()
}

// Close closes the underlying driver.
func (s *Store) Close() error {
	return s.Driver.Close()
}

func (s *Store) latest(ctx context.Context, q dialect.ExecQuerier, threadID string) (*checkpoint.Checkpoint, error) {
	query, args := s.builder().
		Select(columnNames...).
		From(entsql.Table(TableName)).
		Where(entsql.EQ("thread_id", threadID)).
		OrderBy(entsql.Desc("seq")).
		Limit(1).
		Query()

	cps, err := s.scan(ctx, q, query, args)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, nil
	}

	return cps[0], nil
}

func (s *Store) scan(ctx context.Context, q dialect.ExecQuerier, query string, args []any) ([]*checkpoint.Checkpoint, error) {
	var rows entsql.Rows
	if err := q.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	cps := []*checkpoint.Checkpoint{}
	for rows.Next() {
		var (
			cp        checkpoint.Checkpoint
			parentID  stdsql.NullString
			stateJSON string
			createdAt time.Time
		)

		if err := rows.Scan(&cp.ID, &parentID, &cp.ThreadID, &cp.Seq, &cp.Next, &stateJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}

		if parentID.Valid {
			p := parentID.String
			cp.ParentID = &p
		}
		if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state of checkpoint %s: %w", cp.ID, err)
		}
		cp.CreatedAt = createdAt.UTC()

		cps = append(cps, &cp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoints: %w", err)
	}

	return cps, nil
}
