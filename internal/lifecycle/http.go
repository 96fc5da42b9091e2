package lifecycle

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware mirrors handler.CORSMiddleware from the teacher's
// compliance service, scoped to the operator plane's own origins.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Handler exposes the operator verbs from spec.md §4.9 over HTTP: create,
// restart, remove, and log-tail, one Indexer per route.
type Handler struct {
	manager *Manager
}

// NewHandler builds a Handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes attaches the lifecycle endpoints under /api/v1/indexers,
// the same grouping convention the teacher's HTTP handlers use.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.GET("/ready", h.health)

	v1 := router.Group("/api/v1/indexers")
	v1.POST("/:name/create", h.create)
	v1.POST("/:name/restart", h.restart)
	v1.DELETE("/:name", h.remove)
	v1.GET("/:name/logs", h.logs)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) create(c *gin.Context) {
	name := c.Param("name")
	if err := h.manager.Create(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexer": name, "status": "on"})
}

func (h *Handler) restart(c *gin.Context) {
	name := c.Param("name")
	if err := h.manager.Restart(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexer": name, "status": "on"})
}

func (h *Handler) remove(c *gin.Context) {
	name := c.Param("name")
	if err := h.manager.Remove(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexer": name, "status": "off"})
}

func (h *Handler) logs(c *gin.Context) {
	name := c.Param("name")
	logs, err := h.manager.Logs(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.String(http.StatusOK, logs)
}
