package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
	"tombstone/internal/domain"
	"tombstone/internal/domain/scope"
	"tombstone/internal/infrastructure/storage/sqlbuild"
	"tombstone/internal/metadata"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var _ domain.RecordRepository = (*RecordRepo)(nil)

// RecordRepo implements domain.RecordRepository on PostgreSQL.
type RecordRepo struct {
	txm     *TxManager
	dialect sqlbuild.Dialect
}

// NewRecordRepo creates a repository bound to the transaction manager.
func NewRecordRepo(txm *TxManager) *RecordRepo {
	return &RecordRepo{txm: txm, dialect: sqlbuild.Postgres}
}

// Insert implements domain.RecordRepository.
func (r *RecordRepo) Insert(ctx context.Context, def *metadata.TypeDef, rec *entity.Record) error {
	q, err := r.dialect.Insert(def, rec)
	if err != nil {
		return apperror.NewInvalidInput(err.Error())
	}
	return r.exec(ctx, def, rec.ID, "insert", q, false)
}

// Update implements domain.RecordRepository.
func (r *RecordRepo) Update(ctx context.Context, def *metadata.TypeDef, rec *entity.Record) error {
	q, err := r.dialect.Update(def, rec)
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
	q, err := r.dialect.SetDestroyedAt(def, recID, at)
	if err != nil {
		return err
	}
	return r.exec(ctx, def, recID, "set destroyed_at", q, true)
}

// Delete implements domain.RecordRepository. A missing row is not an error.
func (r *RecordRepo) Delete(ctx context.Context, def *metadata.TypeDef, recID id.ID) error {
	return r.exec(ctx, def, recID, "delete", r.dialect.Delete(def, recID), false)
}

// AdjustCounter implements domain.RecordRepository.
func (r *RecordRepo) AdjustCounter(ctx context.Context, def *metadata.TypeDef, recID id.ID, column string, delta int) error {
	if !def.HasColumn(column) {
		return apperror.NewValidation(fmt.Sprintf("unknown counter column %s.%s", def.Name, column))
	}
	return r.exec(ctx, def, recID, "adjust counter", r.dialect.AdjustCounter(def, recID, column, delta), false)
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
	sb, err := r.dialect.Select(def, q)
	if err != nil {
		return nil, err
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []map[string]any
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, apperror.NewDatabase("list "+def.Table, err)
	}

	recs := make([]*entity.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := r.dialect.Record(def, row)
		if err != nil {
			return nil, apperror.NewDatabase("decode "+def.Table, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Count implements domain.RecordRepository.
func (r *RecordRepo) Count(ctx context.Context, def *metadata.TypeDef, q domain.RecordQuery) (int64, error) {
	sb, err := r.dialect.Count(def, q)
	if err != nil {
		return 0, err
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var n int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, apperror.NewDatabase("count "+def.Table, err)
	}
	return n, nil
}

func (r *RecordRepo) exec(ctx context.Context, def *metadata.TypeDef, recID id.ID, op string, q squirrel.Sqlizer, mustAffect bool) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return mapError(def, recID, op, err)
	}
	if mustAffect && tag.RowsAffected() == 0 {
		return apperror.NewNotFound(def.Name, recID.String())
	}
	return nil
}

func mapError(def *metadata.TypeDef, recID id.ID, op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return apperror.NewConflict(fmt.Sprintf("%s %s is still referenced", def.Name, recID)).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgUniqueViolation:
			return apperror.NewDuplicate(def.Name, "id", recID.String()).WithCause(err)
		}
	}
	return apperror.NewDatabase(op+" "+def.Table, err)
}
