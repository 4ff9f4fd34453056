package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/id"
	"tombstone/internal/metadata"
)

func TestMapError(t *testing.T) {
	def := &metadata.TypeDef{Name: "post", Table: "posts"}
	recID := id.New()

	err := mapError(def, recID, "delete", &pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "comments_post_id_fkey"})
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
	app, _ := apperror.AsAppError(err)
	assert.Equal(t, "comments_post_id_fkey", app.Details["constraint"])

	err = mapError(def, recID, "insert", &pgconn.PgError{Code: pgUniqueViolation})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	boom := errors.New("conn closed")
	err = mapError(def, recID, "update", boom)
	assert.True(t, apperror.HasCode(err, apperror.CodeDatabase))
	assert.ErrorIs(t, err, boom)
}
