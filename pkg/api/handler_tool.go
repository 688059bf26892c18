package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// toolRenameHandler handles POST /api/v1/project/{pid}/tool/rename (spec
// §6): applies each old_name/new_name pair in order.
func (s *Server) toolRenameHandler(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "pid")
	if !ok {
		return
	}

	var req toolRenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	for _, pair := range req.Rename {
		if err := s.blocks.RenameTool(ctx, projectID, pair.OldName, pair.NewName); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
