package export

import "encoding/json"

// EventState is the reported state of one saga step.
type EventState string

const (
	StateRunning EventState = "running"
	StateDone    EventState = "done"
	StateWarning EventState = "warning"
	StateError   EventState = "error"
)

// Step targets, one per saga step, used to tag progress events.
const (
	TargetInit       = "init"
	TargetShow       = "show"
	TargetDuplicates = "duplicates"
	TargetUpload     = "upload"
	TargetMetadata   = "metadata"
	TargetCover      = "cover"
	TargetPersist    = "persist"
	TargetValidate   = "validate"
)

// Event is one progress report of a running export. Events form an ordered,
// append-only stream; they are never persisted.
type Event struct {
	Target      string            `json:"target"`
	State       EventState        `json:"state"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Items       map[string]string `json:"items,omitempty"`
	CopyValues  map[string]string `json:"copy_values,omitempty"`
}

// CloseMessage terminates the SSE stream. It is deliberately not valid JSON;
// consumers special-case it as the out-of-band end marker.
const CloseMessage = "data: CLOSE CONNECTION\n\n"

// Message renders the event as one server-sent-events frame.
func (e Event) Message() string {
	encoded, err := json.Marshal(e)
	if err != nil {
		// Event only holds strings and string maps, so this cannot happen.
		return CloseMessage
	}
	return "data: " + string(encoded) + "\n\n"
}
