package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "tombstone/internal/core/context"
	"tombstone/internal/core/instant"
	"tombstone/internal/domain/lifecycle"
	"tombstone/internal/infrastructure/http/v1/dto"
	"tombstone/internal/infrastructure/metrics"
	"tombstone/internal/infrastructure/storage/memory"
	"tombstone/internal/metadata"
	"tombstone/pkg/logger"
)

type apiFixture struct {
	t      *testing.T
	router http.Handler
	actors []string
}

func newAPI(t *testing.T, ping func(context.Context) error) *apiFixture {
	t.Helper()

	reg := metadata.NewRegistry().MustRegister(
		metadata.TypeDef{
			Name:      "post",
			Lifecycle: true,
			Columns: []metadata.ColumnDef{
				{Name: "title", Kind: metadata.KindString},
				{Name: "comments_count", Kind: metadata.KindInteger},
			},
			Relations: []metadata.RelationDef{
				{Name: "comments", Kind: metadata.HasMany, Target: "comment", ForeignKey: "post_id", Dependent: metadata.PolicyDestroy},
			},
		},
		metadata.TypeDef{
			Name:      "comment",
			Lifecycle: true,
			Columns: []metadata.ColumnDef{
				{Name: "post_id", Kind: metadata.KindID},
				{Name: "body", Kind: metadata.KindString},
			},
			Relations: []metadata.RelationDef{
				{Name: "post", Kind: metadata.BelongsTo, Target: "post", ForeignKey: "post_id", CounterCache: "comments_count"},
			},
		},
	)
	require.NoError(t, reg.Finalize())

	f := &apiFixture{t: t}
	store := memory.New(logger.Nop())
	promReg := prometheus.NewRegistry()
	svc, err := lifecycle.NewService(lifecycle.Config{
		Registry:  reg,
		Repo:      store,
		TxManager: store,
		Clock:     instant.Fixed(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
		Metrics:   metrics.New(promReg),
		Logger:    logger.Nop(),
		Observers: []lifecycle.Observer{lifecycle.ObserverFunc(func(ctx context.Context, tr lifecycle.Transition) error {
			if tr.Root {
				f.actors = append(f.actors, appctx.Actor(ctx))
			}
			return nil
		})},
	})
	require.NoError(t, err)

	f.router = NewRouter(RouterConfig{Service: svc, Logger: logger.Nop(), Ping: ping, Gatherer: promReg})
	return f
}

func (f *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "alice")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (f *apiFixture) create(typeName, body string) dto.RecordResponse {
	f.t.Helper()
	w := f.do(http.MethodPost, "/api/v1/records/"+typeName, body)
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[dto.RecordResponse](f.t, w)
}

func TestRecords_DestroyAndRestoreCascade(t *testing.T) {
	f := newAPI(t, nil)

	post := f.create("post", `{"fields": {"title": "hello", "comments_count": 0}}`)
	f.create("comment", `{"fields": {"post_id": "`+post.ID+`", "body": "hi"}}`)

	w := f.do(http.MethodGet, "/api/v1/records/post/"+post.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[dto.RecordResponse](t, w).Fields["comments_count"])

	w = f.do(http.MethodPost, "/api/v1/records/post/"+post.ID+"/destroy", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[dto.ResultResponse](t, w)
	assert.True(t, res.OK)
	assert.Len(t, res.Destroyed, 2)
	require.NotNil(t, res.Instant)

	w = f.do(http.MethodGet, "/api/v1/records/comment", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[dto.ListResponse](t, w).Items)

	w = f.do(http.MethodGet, "/api/v1/records/comment?scope=destroyed&destroyedAt="+url.QueryEscape(res.Instant.Format(time.RFC3339Nano)), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[dto.ListResponse](t, w).Items, 1)

	w = f.do(http.MethodGet, "/api/v1/records/post/"+post.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPost, "/api/v1/records/post/"+post.ID+"/restore", `{"recursive": true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[dto.ResultResponse](t, w).Restored, 2)

	w = f.do(http.MethodGet, "/api/v1/records/post/"+post.ID+"/related/comments", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[dto.ListResponse](t, w).Items, 1)

	assert.Equal(t, []string{"alice", "alice", "alice", "alice"}, f.actors)
}

func TestRecords_RestoreWithoutCascade(t *testing.T) {
	f := newAPI(t, nil)
	post := f.create("post", `{"fields": {"title": "hello", "comments_count": 0}}`)
	f.create("comment", `{"fields": {"post_id": "`+post.ID+`", "body": "hi"}}`)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/records/post/"+post.ID+"/destroy", `{"at": "2024-04-01T00:00:00Z"}`).Code)

	w := f.do(http.MethodPost, "/api/v1/records/post/"+post.ID+"/restore", `{"recursive": false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[dto.ResultResponse](t, w)
	assert.Len(t, res.Restored, 1)

	w = f.do(http.MethodGet, "/api/v1/records/comment?scope=destroyed", "")
	assert.Len(t, decode[dto.ListResponse](t, w).Items, 1)
}

func TestRecords_ListFilterAndPaging(t *testing.T) {
	f := newAPI(t, nil)
	for _, title := range []string{"alpha", "beta", "gamma"} {
		f.create("post", `{"fields": {"title": "`+title+`", "comments_count": 0}}`)
	}

	filter := url.QueryEscape(`[{"field": "title", "operator": "contains", "value": "a"}]`)
	w := f.do(http.MethodGet, "/api/v1/records/post?orderBy=-title&limit=2&filter="+filter, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	page := decode[dto.ListResponse](t, w)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "gamma", page.Items[0].Fields["title"])

	w = f.do(http.MethodGet, "/api/v1/records/post?filter=notjson", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecords_UpdateAndDelete(t *testing.T) {
	f := newAPI(t, nil)
	post := f.create("post", `{"fields": {"title": "draft", "comments_count": 0}}`)

	w := f.do(http.MethodPut, "/api/v1/records/post/"+post.ID, `{"fields": {"title": "final"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "final", decode[dto.RecordResponse](t, w).Fields["title"])

	w = f.do(http.MethodDelete, "/api/v1/records/post/"+post.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(http.MethodGet, "/api/v1/records/post/"+post.ID+"?scope=all", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecords_Errors(t *testing.T) {
	f := newAPI(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown type", http.MethodGet, "/api/v1/records/ghost", "", http.StatusNotFound, "UNKNOWN_TYPE"},
		{"bad id", http.MethodGet, "/api/v1/records/post/nope", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad scope", http.MethodGet, "/api/v1/records/post?scope=zombie", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"instant without destroyed scope", http.MethodGet, "/api/v1/records/post?destroyedAt=2024-01-01T00:00:00Z", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", http.MethodPost, "/api/v1/records/post", `{"fields": {"nope": 1}}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"wrong kind", http.MethodPost, "/api/v1/records/post", `{"fields": {"comments_count": "many"}}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"missing fields", http.MethodPost, "/api/v1/records/post", `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown relation", http.MethodGet, "/api/v1/records/post/018f0000-0000-7000-8000-000000000000/related/likes", "", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[dto.ErrorResponse](t, w).Code)
		})
	}
}

func TestMetaHealthAndMetrics(t *testing.T) {
	f := newAPI(t, func(context.Context) error { return errors.New("connection refused") })

	w := f.do(http.MethodGet, "/api/v1/meta/types", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]metadata.TypeDef](t, w), 2)

	w = f.do(http.MethodGet, "/api/v1/meta/types/comment", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "comment", decode[metadata.TypeDef](t, w).Name)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health/live", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/health/ready", "").Code)

	post := f.create("post", `{"fields": {"title": "x", "comments_count": 0}}`)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/records/post/"+post.ID+"/destroy", "").Code)

	w = f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `tombstone_transitions_total{operation="destroy",type="post"} 1`)
}
