package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/ragchat/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after a workflow turn reaches its end
	// and the final checkpoint is durable.
	EventTypeTurnCompleted = "ragchat.turn.completed"
)

// TurnCompletedEvent is a transport-neutral event payload for a completed turn.
type TurnCompletedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	ThreadID     string   `json:"thread_id"`
	CheckpointID string   `json:"checkpoint_id"`
	Seq          int      `json:"seq"`
	Policy       string   `json:"policy"`
	Path         []string `json:"path"`

	Query           string      `json:"query"`
	FilePath        string      `json:"file_path,omitempty"`
	EnableWebSearch bool        `json:"enable_web_search"`
	Reply           llm.Message `json:"reply"`
	Usage           *llm.Usage  `json:"usage,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// NewTurnCompletedEvent fills the envelope fields of a new event.
func NewTurnCompletedEvent(threadID string) *TurnCompletedEvent {
	return &TurnCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		ThreadID:      threadID,
	}
}
