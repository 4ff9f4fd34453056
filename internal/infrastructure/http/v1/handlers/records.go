package handlers

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
	"tombstone/internal/domain"
	domainFilter "tombstone/internal/domain/filter"
	"tombstone/internal/domain/lifecycle"
	"tombstone/internal/domain/scope"
	"tombstone/internal/infrastructure/http/v1/dto"
	"tombstone/internal/metadata"
)

// RecordHandler exposes the lifecycle engine for every registered type.
type RecordHandler struct {
	*BaseHandler
	service *lifecycle.Service
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(base *BaseHandler, service *lifecycle.Service) *RecordHandler {
	return &RecordHandler{BaseHandler: base, service: service}
}

// List handles GET /records/:type.
func (h *RecordHandler) List(c *gin.Context) {
	q := h.service.Records(c.Param("type"))
	if !h.applyListParams(c, q) {
		return
	}

	result, err := q.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromList(result))
}

// Get handles GET /records/:type/:id.
func (h *RecordHandler) Get(c *gin.Context) {
	recID, ok := h.ParseID(c)
	if !ok {
		return
	}
	sc, ok := h.parseScope(c)
	if !ok {
		return
	}

	rec, err := h.service.Records(c.Param("type")).Scope(sc).Find(c.Request.Context(), recID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRecord(rec))
}

// Create handles POST /records/:type.
func (h *RecordHandler) Create(c *gin.Context) {
	def, ok := h.lookup(c)
	if !ok {
		return
	}

	var req dto.CreateRecordRequest
	if !h.BindJSON(c, &req) {
		return
	}
	fields, err := dto.ToFields(def, req.Fields)
	if err != nil {
		h.Error(c, apperror.NewInvalidInput(err.Error()))
		return
	}

	rec := entity.New(def.Name, fields)
	if req.ID != "" {
		if rec.ID, err = id.Parse(req.ID); err != nil {
			h.Error(c, apperror.NewValidation("invalid id format").WithDetail("id", req.ID))
			return
		}
	}
	rec.DestroyedAt = req.DestroyedAt

	if err := h.service.Create(c.Request.Context(), rec); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromRecord(rec))
}

// Update handles PUT /records/:type/:id. Only fields present in the body change.
func (h *RecordHandler) Update(c *gin.Context) {
	def, ok := h.lookup(c)
	if !ok {
		return
	}
	rec, ok := h.load(c)
	if !ok {
		return
	}

	var req dto.UpdateRecordRequest
	if !h.BindJSON(c, &req) {
		return
	}
	fields, err := dto.ToFields(def, req.Fields)
	if err != nil {
		h.Error(c, apperror.NewInvalidInput(err.Error()))
		return
	}
	for k, v := range fields {
		rec.Fields.Set(k, v)
	}

	if err := h.service.Save(c.Request.Context(), rec); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRecord(rec))
}

// Destroy handles POST /records/:type/:id/destroy.
func (h *RecordHandler) Destroy(c *gin.Context) {
	rec, ok := h.load(c)
	if !ok {
		return
	}

	var req dto.DestroyRequest
	if !h.BindJSON(c, &req) {
		return
	}
	var opts []lifecycle.DestroyOption
	if req.At != nil {
		opts = append(opts, lifecycle.At(*req.At))
	}

	res := h.service.Destroy(c.Request.Context(), rec, opts...)
	if !res.OK {
		h.Error(c, res.Err)
		return
	}
	h.OK(c, dto.FromResult(res))
}

// Restore handles POST /records/:type/:id/restore.
func (h *RecordHandler) Restore(c *gin.Context) {
	rec, ok := h.load(c)
	if !ok {
		return
	}

	var req dto.RestoreRequest
	if !h.BindJSON(c, &req) {
		return
	}
	var opts []lifecycle.RestoreOption
	if req.At != nil {
		opts = append(opts, lifecycle.WithCorrelation(*req.At))
	}
	if req.Recursive != nil && !*req.Recursive {
		opts = append(opts, lifecycle.WithoutCascade())
	}

	res := h.service.Restore(c.Request.Context(), rec, opts...)
	if !res.OK {
		h.Error(c, res.Err)
		return
	}
	h.OK(c, dto.FromResult(res))
}

// Delete handles DELETE /records/:type/:id (hard delete without cascade).
func (h *RecordHandler) Delete(c *gin.Context) {
	rec, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), rec); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Related handles GET /records/:type/:id/related/:relation.
// The relation's own scope applies; scope= overrides it.
func (h *RecordHandler) Related(c *gin.Context) {
	owner, ok := h.load(c)
	if !ok {
		return
	}

	q := h.service.Related(owner, c.Param("relation"))
	if c.Query("scope") != "" || c.Query("destroyedAt") != "" {
		if !h.applyListParams(c, q) {
			return
		}
	} else {
		h.applyPaging(c, q)
	}

	result, err := q.List(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromList(result))
}

// load reads the :type/:id record in any state.
func (h *RecordHandler) load(c *gin.Context) (*entity.Record, bool) {
	recID, ok := h.ParseID(c)
	if !ok {
		return nil, false
	}
	rec, err := h.service.Records(c.Param("type")).Unscoped().Find(c.Request.Context(), recID)
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	return rec, true
}

func (h *RecordHandler) lookup(c *gin.Context) (*metadata.TypeDef, bool) {
	def, err := h.service.Registry().Lookup(c.Param("type"))
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	return def, true
}

func (h *RecordHandler) parseScope(c *gin.Context) (scope.Scope, bool) {
	var at *time.Time
	if raw := c.Query("destroyedAt"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid destroyedAt, RFC3339 expected").WithDetail("destroyedAt", raw))
			return scope.Scope{}, false
		}
		at = &t
	}
	sc, err := scope.Parse(c.Query("scope"), at)
	if err != nil {
		h.Error(c, apperror.NewValidation(err.Error()))
		return scope.Scope{}, false
	}
	return sc, true
}

func (h *RecordHandler) applyListParams(c *gin.Context, q *lifecycle.Query) bool {
	sc, ok := h.parseScope(c)
	if !ok {
		return false
	}
	q.Scope(sc)

	if filterJSON := c.Query("filter"); filterJSON != "" {
		var items []domainFilter.Item
		if err := json.Unmarshal([]byte(filterJSON), &items); err != nil {
			h.Error(c, apperror.NewValidation("invalid filter format (json expected)"))
			return false
		}
		q.Where(items...)
	}
	h.applyPaging(c, q)
	return true
}

func (h *RecordHandler) applyPaging(c *gin.Context, q *lifecycle.Query) {
	if orderBy := c.Query("orderBy"); orderBy != "" {
		q.OrderBy(orderBy)
	}
	q.Limit(h.ParseIntQuery(c, "limit", domain.DefaultLimit))
	q.Offset(h.ParseIntQuery(c, "offset", 0))
}
