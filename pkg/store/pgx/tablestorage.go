package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/keggflow/internal/util"
	"github.com/OFFIS-RIT/keggflow/pkg/logger"
	"github.com/OFFIS-RIT/keggflow/pkg/store"
	"github.com/OFFIS-RIT/keggflow/pkg/table"

	pgxv5 "github.com/jackc/pgx/v5"
)

const copyChunkSize = 5000

type txStarter interface {
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// TableDBStorage implements store.TableStorage on PostgreSQL. Each
// ReplaceTable call runs in its own transaction: the old rows are deleted and
// the new ones copied in, so readers see either the previous load or the new
// one.
type TableDBStorage struct {
	conn txStarter
}

func NewTableDBStorage(conn txStarter) *TableDBStorage {
	return &TableDBStorage{conn: conn}
}

func (s *TableDBStorage) ReplaceTable(ctx context.Context, spec store.TableSpec, t table.Table) (int64, error) {
	values, err := spec.Values(t)
	if err != nil {
		return 0, err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM "+pgxv5.Identifier{spec.Name}.Sanitize()); err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", spec.Name, err)
	}

	var total int64
	err = util.ChunkRange(len(values), copyChunkSize, func(start, end int) error {
		n, err := tx.CopyFrom(ctx, pgxv5.Identifier{spec.Name}, spec.ColumnNames(), pgxv5.CopyFromRows(values[start:end]))
		if err != nil {
			return fmt.Errorf("failed to copy rows into %s: %w", spec.Name, err)
		}
		total += n
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit %s: %w", spec.Name, err)
	}
	logger.Info("[Load] Replaced table", "table", spec.Name, "rows", total)
	return total, nil
}

// LoadFile reads a CSV written by the pipeline and replaces the matching
// table with it.
func LoadFile(ctx context.Context, s store.TableStorage, spec store.TableSpec, path string) (int64, error) {
	t, err := table.ReadCSV(path)
	if err != nil {
		return 0, err
	}
	return s.ReplaceTable(ctx, spec, t)
}
