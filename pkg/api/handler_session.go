package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nextlevelbuilder/acontext/pkg/bus"
	"github.com/nextlevelbuilder/acontext/pkg/store"
)

// flushHandler handles POST /api/v1/project/{pid}/session/{sid}/flush
// (spec §6, §2 control flow): runs the Task-Extraction Agent over the
// session's unassigned messages, then publishes a NewTaskComplete event
// per task that just transitioned to status=success in this run (not
// every historically-success task — only fresh transitions, so a
// redelivered or repeated flush can't re-trigger SOP abstraction for
// work already dispatched).
func (s *Server) flushHandler(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "pid")
	if !ok {
		return
	}
	sessionID, ok := parseUUIDParam(c, "sid")
	if !ok {
		return
	}

	ctx := c.Request.Context()

	sess, err := s.sessions.FetchSession(ctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.ProjectID != projectID {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found in project"})
		return
	}

	messages, err := s.messages.ListUnassignedMessages(ctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(messages) == 0 {
		c.JSON(http.StatusOK, flushResponse{Status: "ok"})
		return
	}

	before, err := s.tasks.ListCurrentTasks(ctx, sessionID, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	beforeStatus := make(map[string]store.TaskStatus, len(before))
	for _, t := range before {
		beforeStatus[t.ID.String()] = t.Status
	}

	if err := s.taskAgent.Run(ctx, sessionID, messages); err != nil {
		c.JSON(http.StatusOK, flushResponse{Status: "error", ErrMsg: err.Error()})
		return
	}

	after, err := s.tasks.ListCurrentTasks(ctx, sessionID, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	for _, t := range after {
		if t.Status != store.TaskStatusSuccess || beforeStatus[t.ID.String()] == store.TaskStatusSuccess {
			continue
		}
		event := bus.NewTaskComplete{ProjectID: projectID, SessionID: sessionID, TaskID: t.ID}
		if err := bus.Publish(ctx, s.bus, bus.ExchangeSpaceTask, event); err != nil {
			c.JSON(http.StatusOK, flushResponse{Status: "error", ErrMsg: err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, flushResponse{Status: "ok"})
}

// learningStatusHandler handles GET .../session/{sid}/get_learning_status
// (spec §6): counts non-planning success tasks by space_digested. Returns
// {0,0} when the session has no linked space, per spec.
func (s *Server) learningStatusHandler(c *gin.Context) {
	sessionID, ok := parseUUIDParam(c, "sid")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	sess, err := s.sessions.FetchSession(ctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.SpaceID == nil {
		c.JSON(http.StatusOK, learningStatusResponse{})
		return
	}

	digested, notDigested, err := s.tasks.CountLearningStatus(ctx, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, learningStatusResponse{
		SpaceDigestedCount:    digested,
		NotSpaceDigestedCount: notDigested,
	})
}
