package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/acontext/pkg/agent/search"
	"github.com/nextlevelbuilder/acontext/pkg/agent/taskextract"
	"github.com/nextlevelbuilder/acontext/pkg/bus"
	"github.com/nextlevelbuilder/acontext/pkg/config"
	"github.com/nextlevelbuilder/acontext/pkg/database"
	"github.com/nextlevelbuilder/acontext/pkg/retrieval"
	"github.com/nextlevelbuilder/acontext/pkg/store"
)

const dbHealthTimeout = 5 * time.Second

// Server is the HTTP trigger surface the spec carves out of an otherwise
// fully agent/bus-driven core (spec §6): flush, the two search
// shortcuts, experience_search, insert_block, tool rename, and
// get_learning_status.
type Server struct {
	engine *gin.Engine
	http   *http.Server

	db        *database.Client
	cfg       *config.Config
	bus       *bus.Bus
	blocks    *store.BlockStore
	tasks     *store.TaskStore
	messages  *store.MessageStore
	sessions  *store.SessionStore
	taskAgent *taskextract.Agent
	searcher  *retrieval.Searcher
	search    *search.Service
}

// NewServer builds the Gin engine and registers every route in spec
// §6's HTTP trigger list.
func NewServer(
	cfg *config.Config,
	db *database.Client,
	busConn *bus.Bus,
	blocks *store.BlockStore,
	tasks *store.TaskStore,
	messages *store.MessageStore,
	sessions *store.SessionStore,
	taskAgent *taskextract.Agent,
	searcher *retrieval.Searcher,
	searchSvc *search.Service,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery())

	s := &Server{
		engine:    e,
		db:        db,
		cfg:       cfg,
		bus:       busConn,
		blocks:    blocks,
		tasks:     tasks,
		messages:  messages,
		sessions:  sessions,
		taskAgent: taskAgent,
		searcher:  searcher,
		search:    searchSvc,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	v1 := s.engine.Group("/api/v1/project/:pid")
	v1.POST("/session/:sid/flush", s.flushHandler)
	v1.GET("/session/:sid/get_learning_status", s.learningStatusHandler)
	v1.GET("/space/:sid/semantic_glob", s.semanticGlobHandler)
	v1.GET("/space/:sid/semantic_grep", s.semanticGrepHandler)
	v1.GET("/space/:sid/experience_search", s.experienceSearchHandler)
	v1.POST("/space/:sid/insert_block", s.insertBlockHandler)
	v1.POST("/tool/rename", s.toolRenameHandler)
}

// Start runs the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.engine}
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbHealthTimeout)
	defer cancel()
	health, err := database.Health(ctx, s.db.Pool)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": health.Status})
}

// parseUUIDParam reads a uuid path param, writing a 400 response and
// returning ok=false on a malformed value.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.UUID{}, false
	}
	return id, true
}
