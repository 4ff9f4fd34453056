package handlers

import (
	"github.com/gin-gonic/gin"

	"tombstone/internal/core/apperror"
	"tombstone/internal/metadata"
)

type MetadataHandler struct {
	*BaseHandler
	registry *metadata.Registry
}

func NewMetadataHandler(base *BaseHandler, registry *metadata.Registry) *MetadataHandler {
	return &MetadataHandler{
		BaseHandler: base,
		registry:    registry,
	}
}

// ListTypes returns every registered type with its relations.
// GET /api/v1/meta/types
func (h *MetadataHandler) ListTypes(c *gin.Context) {
	h.OK(c, h.registry.List())
}

// GetType returns one type definition.
// GET /api/v1/meta/types/:name
func (h *MetadataHandler) GetType(c *gin.Context) {
	def, ok := h.registry.Get(c.Param("name"))
	if !ok {
		h.Error(c, apperror.NewUnknownType(c.Param("name")))
		return
	}
	h.OK(c, def)
}
