package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
	"tombstone/internal/domain"
	"tombstone/internal/domain/scope"
	"tombstone/internal/infrastructure/storage/sqlbuild"
	"tombstone/internal/metadata"
)

var postDef = &metadata.TypeDef{
	Name:      "post",
	Table:     "posts",
	Lifecycle: true,
	Columns: []metadata.ColumnDef{
		{Name: "title", Kind: metadata.KindString},
		{Name: "comments_count", Kind: metadata.KindInteger},
	},
}

func TestRecordRepo_AdjustCounter(t *testing.T) {
	txm, mock := newMock(t, sqlbuild.MySQL)
	repo := NewRecordRepo(txm)
	postID := id.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts SET comments_count = CASE WHEN COALESCE(comments_count, 0) + ? < 0")).
		WithArgs(-1, -1, postID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AdjustCounter(context.Background(), postDef, postID, "comments_count", -1))
	assert.NoError(t, mock.ExpectationsWereMet())

	err := repo.AdjustCounter(context.Background(), postDef, postID, "likes", 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestRecordRepo_UpdateMissingRowIsNotFound(t *testing.T) {
	txm, mock := newMock(t, sqlbuild.MySQL)
	repo := NewRecordRepo(txm)
	rec := entity.Loaded("post", id.New(), nil, entity.Fields{"title": "x", "comments_count": int64(0)})

	mock.ExpectExec(regexp.QuoteMeta("UPDATE posts SET")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), postDef, rec)
	assert.True(t, apperror.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepo_ListDecodesMySQLBytes(t *testing.T) {
	txm, mock := newMock(t, sqlbuild.MySQL)
	repo := NewRecordRepo(txm)
	postID := id.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, destroyed_at, title, comments_count FROM posts WHERE destroyed_at IS NOT NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "destroyed_at", "title", "comments_count"}).
			AddRow([]byte(postID.String()), []byte("1704888000123456"), []byte("hello"), []byte("3")))

	recs, err := repo.List(context.Background(), postDef, domain.RecordQuery{Scope: scope.OnlyDestroyed()})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, postID, rec.ID)
	require.NotNil(t, rec.DestroyedAt)
	assert.Equal(t, int64(1704888000123456), rec.DestroyedAt.UnixMicro())
	assert.Equal(t, "hello", rec.Fields["title"])
	assert.Equal(t, int64(3), rec.Fields["comments_count"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapError_MySQL(t *testing.T) {
	recID := id.New()

	err := mapError(postDef, recID, "insert", &mysql.MySQLError{Number: mysqlDuplicateEntry})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	err = mapError(postDef, recID, "delete", &mysql.MySQLError{Number: mysqlRowIsReferenced})
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	err = mapError(postDef, recID, "delete", errors.New("bad connection"))
	assert.True(t, apperror.HasCode(err, apperror.CodeDatabase))
}
