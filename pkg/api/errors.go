// Package api provides the HTTP trigger surface for acontextd (spec §6):
// flush, the two semantic-search shortcuts, experience_search, insert_block,
// tool rename, and get_learning_status. Everything else (session/project
// CRUD, chat transport, auth) is out of scope per spec §1 and is left to
// callers that sit in front of this service.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nextlevelbuilder/acontext/pkg/store"
)

// writeError maps a store/agent error to the HTTP status spec §7 assigns
// its kind and writes a JSON {error} body. bad_request/not_found/conflict/
// validation map to 4xx; everything else (llm_error, internal, and plain
// Go errors with no sentinel match) maps to 500.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, store.ErrValidation), errors.Is(err, store.ErrBadRequest):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
