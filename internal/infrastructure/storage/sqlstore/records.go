package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
	"tombstone/internal/domain"
	"tombstone/internal/domain/scope"
	"tombstone/internal/metadata"
)

const (
	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

var _ domain.RecordRepository = (*RecordRepo)(nil)

// RecordRepo implements domain.RecordRepository on SQLite and MySQL.
type RecordRepo struct {
	txm *TxManager
	db  *DB
}

// NewRecordRepo creates a repository bound to the transaction manager.
func NewRecordRepo(txm *TxManager) *RecordRepo {
	return &RecordRepo{txm: txm, db: txm.db}
}

// Insert implements domain.RecordRepository.
func (r *RecordRepo) Insert(ctx context.Context, def *metadata.TypeDef, rec *entity.Record) error {
	q, err := r.db.Dialect.Insert(def, rec)
	if err != nil {
		return apperror.NewInvalidInput(err.Error())
	}
	return r.exec(ctx, def, rec.ID, "insert", q, false)
}

// Update implements domain.RecordRepository.
func (r *RecordRepo) Update(ctx context.Context, def *metadata.TypeDef, rec *entity.Record) error {
	q, err := r.db.Dialect.Update(def, rec)
	if err != nil {
		return apperror.NewInvalidInput(err.Error())
	}
	return r.exec(ctx, def, rec.ID, "update", q, true)
}

// SetDestroyedAt implements domain.RecordRepository.
func (r *RecordRepo) SetDestroyedAt(ctx context.Context, def *metadata.TypeDef, recID id.ID, at *time.Time) error {
	if !def.Lifecycle {
		return apperror.NewLifecycleUnsupported(def.Name, "set destroyed_at")
	}
	q, err := r.db.Dialect.SetDestroyedAt(def, recID, at)
	if err != nil {
		return err
	}
	return r.exec(ctx, def, recID, "set destroyed_at", q, true)
}

// Delete implements domain.RecordRepository.
func (r *RecordRepo) Delete(ctx context.Context, def *metadata.TypeDef, recID id.ID) error {
	return r.exec(ctx, def, recID, "delete", r.db.Dialect.Delete(def, recID), false)
}

// AdjustCounter implements domain.RecordRepository.
func (r *RecordRepo) AdjustCounter(ctx context.Context, def *metadata.TypeDef, recID id.ID, column string, delta int) error {
	if !def.HasColumn(column) {
		return apperror.NewValidation(fmt.Sprintf("unknown counter column %s.%s", def.Name, column))
	}
	return r.exec(ctx, def, recID, "adjust counter", r.db.Dialect.AdjustCounter(def, recID, column, delta), false)
}

// Get implements domain.RecordRepository.
func (r *RecordRepo) Get(ctx context.Context, def *metadata.TypeDef, recID id.ID, sc scope.Scope) (*entity.Record, error) {
	recs, err := r.List(ctx, def, domain.RecordQuery{Scope: sc, IDs: []id.ID{recID}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperror.NewNotFound(def.Name, recID.String())
	}
	return recs[0], nil
}

// List implements domain.RecordRepository.
func (r *RecordRepo) List(ctx context.Context, def *metadata.TypeDef, q domain.RecordQuery) ([]*entity.Record, error) {
	sb, err := r.db.Dialect.Select(def, q)
	if err != nil {
		return nil, err
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.txm.GetQuerier(ctx).QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.NewDatabase("list "+def.Table, err)
	}
	defer rows.Close()

	var recs []*entity.Record
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, apperror.NewDatabase("scan "+def.Table, err)
		}
		rec, err := r.db.Dialect.Record(def, row)
		if err != nil {
			return nil, apperror.NewDatabase("decode "+def.Table, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDatabase("list "+def.Table, err)
	}
	return recs, nil
}

// Count implements domain.RecordRepository.
func (r *RecordRepo) Count(ctx context.Context, def *metadata.TypeDef, q domain.RecordQuery) (int64, error) {
	sb, err := r.db.Dialect.Count(def, q)
	if err != nil {
		return 0, err
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var n int64
	if err := r.txm.GetQuerier(ctx).QueryRowxContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperror.NewDatabase("count "+def.Table, err)
	}
	return n, nil
}

func (r *RecordRepo) exec(ctx context.Context, def *metadata.TypeDef, recID id.ID, op string, q squirrel.Sqlizer, mustAffect bool) error {
	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	res, err := r.txm.GetQuerier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(def, recID, op, err)
	}
	if mustAffect {
		n, err := res.RowsAffected()
		if err != nil {
			return apperror.NewDatabase(op+" "+def.Table, err)
		}
		if n == 0 {
			return apperror.NewNotFound(def.Name, recID.String())
		}
	}
	return nil
}

func mapError(def *metadata.TypeDef, recID id.ID, op string, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return apperror.NewDuplicate(def.Name, "id", recID.String()).WithCause(err)
		case mysqlRowIsReferenced, mysqlNoReferencedRow:
			return apperror.NewConflict(fmt.Sprintf("%s %s is still referenced", def.Name, recID)).WithCause(err)
		}
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return apperror.NewDuplicate(def.Name, "id", recID.String()).WithCause(err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return apperror.NewConflict(fmt.Sprintf("%s %s is still referenced", def.Name, recID)).WithCause(err)
		}
	}
	return apperror.NewDatabase(op+" "+def.Table, err)
}
