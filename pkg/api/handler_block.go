package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/acontext/pkg/store"
)

// insertBlockHandler handles POST .../space/{sid}/insert_block (spec
// §6): creates a block of any type directly under an optional parent.
// sop blocks carry their props as store.SOPData and must go through
// WriteSOPToParent, which also resolves the tool_sops join other block
// types don't need.
func (s *Server) insertBlockHandler(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "pid")
	if !ok {
		return
	}
	spaceID, ok := parseUUIDParam(c, "sid")
	if !ok {
		return
	}

	var req insertBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var parentID *uuid.UUID
	if req.ParentID != nil {
		id, err := uuid.Parse(*req.ParentID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent_id"})
			return
		}
		parentID = &id
	}

	blockType := store.BlockType(req.Type)
	ctx := c.Request.Context()

	if blockType == store.BlockTypeSOP {
		if parentID == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "sop blocks require parent_id"})
			return
		}
		var data store.SOPData
		raw, err := json.Marshal(req.Props)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid props"})
			return
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "props do not match sop schema"})
			return
		}
		block, err := s.blocks.WriteSOPToParent(ctx, spaceID, *parentID, projectID, req.Title, data)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, insertBlockResponse{ID: block.ID.String()})
		return
	}

	block, err := s.blocks.InsertBlock(ctx, spaceID, parentID, blockType, req.Title, req.Props)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, insertBlockResponse{ID: block.ID.String()})
}
