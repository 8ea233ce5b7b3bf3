package transcript

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentdeck/agentdeck/internal/common/logger"
	v1 "github.com/agentdeck/agentdeck/pkg/api/v1"
)

// Handler contains the HTTP handlers for transcript access.
type Handler struct {
	store  *Store
	logger *logger.Logger
}

// NewHandler creates a new transcript API handler.
func NewHandler(store *Store, log *logger.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: log,
	}
}

// RegisterRoutes wires the transcript endpoints onto the router group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/transcripts", h.ListTranscripts)
	api.GET("/transcripts/:id", h.GetTranscript)
}

// ListTranscripts returns the transcript IDs for a project, newest first.
// GET /api/transcripts?project_path=
func (h *Handler) ListTranscripts(c *gin.Context) {
	projectPath := c.Query("project_path")
	if projectPath == "" {
		c.JSON(http.StatusBadRequest, v1.Err("project_path is required"))
		return
	}

	ids, err := h.store.List(projectPath)
	if err != nil {
		h.logger.Error("failed to list transcripts",
			zap.String("project_path", projectPath), zap.Error(err))
		c.JSON(http.StatusInternalServerError, v1.Err("failed to list transcripts"))
		return
	}
	c.JSON(http.StatusOK, v1.OK(ids))
}

// GetTranscript returns one transcript's conversation entries.
// GET /api/transcripts/:id?project_path=
func (h *Handler) GetTranscript(c *gin.Context) {
	projectPath := c.Query("project_path")
	if projectPath == "" {
		c.JSON(http.StatusBadRequest, v1.Err("project_path is required"))
		return
	}
	id := c.Param("id")

	entries, err := h.store.Load(projectPath, id)
	if os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, v1.Err("transcript not found"))
		return
	}
	if err != nil {
		h.logger.Error("failed to load transcript",
			zap.String("project_path", projectPath),
			zap.String("transcript_id", id),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, v1.Err("failed to load transcript"))
		return
	}
	out := make([]v1.TranscriptEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, v1.TranscriptEntry{
			ID:        entry.ID,
			Type:      entry.Type,
			Content:   entry.Content,
			Timestamp: entry.Timestamp,
			Model:     entry.Model,
		})
	}
	c.JSON(http.StatusOK, v1.OK(out))
}
