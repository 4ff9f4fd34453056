package v1

import (
	"github.com/gin-gonic/gin"
)

// RecordRouteHandler defines the handlers behind /records.
type RecordRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	Destroy(c *gin.Context)
	Restore(c *gin.Context)
	Related(c *gin.Context)
}

// RegisterRecordRoutes registers CRUD and lifecycle routes for every type.
//
// Usage:
//
//	RegisterRecordRoutes(api.Group("/records"), handlers.NewRecordHandler(base, svc))
func RegisterRecordRoutes(group *gin.RouterGroup, handler RecordRouteHandler) {
	group.GET("/:type", handler.List)
	group.POST("/:type", handler.Create)
	group.GET("/:type/:id", handler.Get)
	group.PUT("/:type/:id", handler.Update)
	group.DELETE("/:type/:id", handler.Delete)
	group.POST("/:type/:id/destroy", handler.Destroy)
	group.POST("/:type/:id/restore", handler.Restore)
	group.GET("/:type/:id/related/:relation", handler.Related)
}
