package bus

import "github.com/google/uuid"

// Payload is implemented only by the bus's declared schemas, so Publish
// rejects anything else at compile time — the idiomatic Go analog of
// spec §4.K's runtime "body must be an instance of a declared schema"
// check (Go has no dynamic isinstance; the type system enforces it here
// instead, one step earlier than the original).
type Payload interface {
	busRoutingKey() string
}

// NewTaskComplete is session.task_complete's payload (spec §6): taskID
// just transitioned to status=success, dispatched to the SOP-Abstraction
// Agent (spec §2 control flow: "successful tasks emit task-complete
// messages; framework routes each to H").
type NewTaskComplete struct {
	ProjectID uuid.UUID `json:"project_id"`
	SessionID uuid.UUID `json:"session_id"`
	TaskID    uuid.UUID `json:"task_id"`
}

func (NewTaskComplete) busRoutingKey() string { return RoutingKeySpaceTaskComplete }

// NewMessage is session.new_message's payload (spec §6): one message was
// appended to a session.
type NewMessage struct {
	ProjectID uuid.UUID `json:"project_id"`
	SessionID uuid.UUID `json:"session_id"`
	MessageID uuid.UUID `json:"message_id"`
}

func (NewMessage) busRoutingKey() string { return RoutingKeySessionNewMessage }

// SOPData mirrors store.SOPData's wire shape without importing pkg/store,
// keeping the bus payload package dependency-free of the storage layer it
// feeds into (consumers decode into store.SOPData themselves).
type SOPData struct {
	UseWhen     string         `json:"use_when"`
	Preferences string         `json:"preferences"`
	ToolSOPs    []SOPDataStep `json:"tool_sops,omitempty"`
}

// SOPDataStep is one tool-usage step within a SOPData.
type SOPDataStep struct {
	ToolName string `json:"tool_name"`
	Action   string `json:"action"`
}

// SOPComplete is sop.complete's payload (spec §6): a SOP was distilled
// from a task and is ready to be filed into the space's page tree.
type SOPComplete struct {
	ProjectID uuid.UUID `json:"project_id"`
	SpaceID   uuid.UUID `json:"space_id"`
	TaskID    uuid.UUID `json:"task_id"`
	SOPData   SOPData   `json:"sop_data"`
}

func (SOPComplete) busRoutingKey() string { return RoutingKeySOPComplete }

// Exchange and routing-key names (spec §6).
const (
	ExchangeSpaceTask = "space_task"
	ExchangeSpaceSOP  = "space_sop"

	RoutingKeySpaceTaskComplete = "space_task_complete"
	RoutingKeySessionNewMessage = "session_new_message"
	RoutingKeySOPComplete       = "sop_complete"
)
