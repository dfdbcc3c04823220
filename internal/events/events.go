// Package events carries domain notifications out of the Q&A core. The
// core hands explicit payloads to an injected Sink; it never waits for
// acknowledgment.
package events

import (
	"encoding/json"
	"log"

	"github.com/sujalbistaa/askgo/internal/ws"
)

// Event names emitted by the core.
const (
	TagsUpdated  = "tags_updated"
	NewPost      = "new_post"
	PostVoted    = "vote"
	PostDeleted  = "delete"
	ThreadClosed = "thread_closed"
	AnswerAccept = "answer_accepted"
)

// Event is one fire-and-forget notification.
type Event struct {
	Name string `json:"type"`
	Data any    `json:"data"`
}

// Sink receives events from the core.
type Sink interface {
	Emit(e Event)
}

// HubSink broadcasts events as JSON frames over the websocket hub.
type HubSink struct {
	Hub *ws.Hub
}

func (s *HubSink) Emit(e Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Printf("Error marshalling event %s: %v", e.Name, err)
		return
	}
	s.Hub.Broadcast <- msg
}

// Discard drops every event; used in tests and batch tooling.
type Discard struct{}

func (Discard) Emit(Event) {}

// Recorder keeps emitted events in order for assertions.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(e Event) { r.Events = append(r.Events, e) }
