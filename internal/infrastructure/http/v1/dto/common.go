// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"tombstone/internal/core/entity"
	"tombstone/internal/domain"
	"tombstone/internal/domain/lifecycle"
)

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse struct {
	Items      []RecordResponse `json:"items"`
	TotalCount int64            `json:"totalCount"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

// FromList maps a page of records.
func FromList(res domain.ListResult[*entity.Record]) ListResponse {
	items := make([]RecordResponse, len(res.Items))
	for i, rec := range res.Items {
		items[i] = FromRecord(rec)
	}
	return ListResponse{
		Items:      items,
		TotalCount: res.TotalCount,
		Limit:      res.Limit,
		Offset:     res.Offset,
	}
}

// --- Records ---

// RecordResponse is the wire form of a record.
type RecordResponse struct {
	Type        string         `json:"type"`
	ID          string         `json:"id"`
	DestroyedAt *time.Time     `json:"destroyedAt"`
	Fields      map[string]any `json:"fields"`
}

// FromRecord creates RecordResponse from entity.Record.
func FromRecord(rec *entity.Record) RecordResponse {
	fields := rec.Fields
	if fields == nil {
		fields = entity.Fields{}
	}
	return RecordResponse{
		Type:        rec.Type,
		ID:          rec.ID.String(),
		DestroyedAt: rec.DestroyedAt,
		Fields:      fields,
	}
}

// CreateRecordRequest for POST /records/:type.
// A set destroyedAt inserts the record already destroyed.
type CreateRecordRequest struct {
	ID          string         `json:"id"`
	DestroyedAt *time.Time     `json:"destroyedAt"`
	Fields      map[string]any `json:"fields" binding:"required"`
}

// UpdateRecordRequest for PUT /records/:type/:id.
type UpdateRecordRequest struct {
	Fields map[string]any `json:"fields" binding:"required"`
}

// --- Lifecycle ---

// DestroyRequest for POST /records/:type/:id/destroy.
type DestroyRequest struct {
	At *time.Time `json:"at"`
}

// RestoreRequest for POST /records/:type/:id/restore.
// Recursive defaults to true.
type RestoreRequest struct {
	At        *time.Time `json:"at"`
	Recursive *bool      `json:"recursive"`
}

// ResultResponse reports the records moved by a lifecycle call.
type ResultResponse struct {
	OK        bool         `json:"ok"`
	Instant   *time.Time   `json:"instant,omitempty"`
	Destroyed []entity.Ref `json:"destroyed"`
	Restored  []entity.Ref `json:"restored"`
	Purged    []entity.Ref `json:"purged"`
}

// FromResult creates ResultResponse from lifecycle.Result.
func FromResult(res lifecycle.Result) ResultResponse {
	return ResultResponse{
		OK:        res.OK,
		Instant:   res.Instant,
		Destroyed: nonNil(res.Destroyed),
		Restored:  nonNil(res.Restored),
		Purged:    nonNil(res.Purged),
	}
}

func nonNil(refs []entity.Ref) []entity.Ref {
	if refs == nil {
		return []entity.Ref{}
	}
	return refs
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
