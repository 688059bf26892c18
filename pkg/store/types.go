// Package store implements the Block Tree Store (spec §4.B) and the rest
// of the persisted data model: projects, spaces, sessions, tasks,
// messages, tool references, and the SOP value type. All operations are
// raw SQL through pgx (see DESIGN.md on why ent was dropped).
package store

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Project is the tenant root: owns tool-name rewrites and spaces.
type Project struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Space is a per-project container of blocks.
type Space struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session is a conversation thread. SpaceID is nil until the session is
// first linked to a space, after which it is immutable.
type Session struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	SpaceID   *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskStatus is one of the four lifecycle states in spec §3.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusFailed  TaskStatus = "failed"
)

// TaskData is the structured payload carried by a Task.
type TaskData struct {
	TaskDescription string   `json:"task_description"`
	Progresses      []string `json:"progresses,omitempty"`
	UserPreferences []string `json:"user_preferences,omitempty"`
	SOPThinking     string   `json:"sop_thinking,omitempty"`
}

// Task is the ordered unit within a session (spec §3).
type Task struct {
	ID             uuid.UUID
	SessionID      uuid.UUID
	Order          int
	Status         TaskStatus
	IsPlanning     bool
	SpaceDigested  bool
	Data           TaskData
	RawMessageIDs  []uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MessageRole is one of the three conversational roles.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// Message is one conversational turn, owned externally; the core only
// consumes ids, roles, serialized parts, and re-targets TaskID.
type Message struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	TaskID    *uuid.UUID
	Role      MessageRole
	Parts     []byte // opaque serialized parts, never interpreted by the core
	CreatedAt time.Time
}

// BlockType is one of the four node kinds in the space tree (spec §3).
type BlockType string

const (
	BlockTypeFolder BlockType = "folder"
	BlockTypePage   BlockType = "page"
	BlockTypeSOP    BlockType = "sop"
	BlockTypeText   BlockType = "text"
)

// PathBlockTypes are the block types that form the navigable tree.
var PathBlockTypes = []BlockType{BlockTypeFolder, BlockTypePage}

// ContentBlockTypes are the leaf block types holding actual content.
var ContentBlockTypes = []BlockType{BlockTypeSOP, BlockTypeText}

// IsPathType reports whether t is a folder or page.
func (t BlockType) IsPathType() bool {
	return t == BlockTypeFolder || t == BlockTypePage
}

// IsContentType reports whether t is a sop or text block.
func (t BlockType) IsContentType() bool {
	return t == BlockTypeSOP || t == BlockTypeText
}

// Block is a node of the space tree (spec §3).
type Block struct {
	ID         uuid.UUID
	SpaceID    uuid.UUID
	ParentID   *uuid.UUID
	Type       BlockType
	Title      string
	Props      map[string]any
	Sort       int
	IsArchived bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EmbeddingPhase distinguishes query-time from document-time embeddings
// (spec §4.D); the two may use different model prompts.
type EmbeddingPhase string

const (
	EmbeddingPhaseQuery    EmbeddingPhase = "query"
	EmbeddingPhaseDocument EmbeddingPhase = "document"
)

// BlockEmbedding is one vector attached to a block (a block holds at
// most one per phase).
type BlockEmbedding struct {
	ID        uuid.UUID
	BlockID   uuid.UUID
	Phase     EmbeddingPhase
	Vector    []float32
	CreatedAt time.Time
}

// ToolReference is a per-project named tool, normalized to lowercase and
// unique per (project_id, name).
type ToolReference struct {
	ID        uuid.UUID
	ProjectID uuid.UUID
	Name      string
	CreatedAt time.Time
}

// ToolSOP associates an SOP block with one tool it invokes.
type ToolSOP struct {
	ID       uuid.UUID
	BlockID  uuid.UUID
	ToolRefID uuid.UUID
	Action   string
}

// SOPStep names one tool invocation an SOP prescribes.
type SOPStep struct {
	ToolName string `json:"tool_name"`
	Action   string `json:"action"`
}

// SOPData is the value type carried from the SOP-Abstraction Agent (H) to
// the Space-Construction Agent (I). At least one of Preferences
// (non-blank) or ToolSOPs (non-empty) must be present.
type SOPData struct {
	UseWhen     string    `json:"use_when"`
	Preferences string    `json:"preferences"`
	ToolSOPs    []SOPStep `json:"tool_sops"`
}

// Valid reports whether the SOPData satisfies spec §3's invariant.
func (d SOPData) Valid() bool {
	return strings.TrimSpace(d.Preferences) != "" || len(d.ToolSOPs) > 0
}
