// Package events defines the typed events flowing through the
// per-conversation ordered streams: inbound chat messages, button-press
// callbacks, and synthetic timer firings. Timer events travel through the
// same stream as platform events so that a timer can never interleave with
// a message for the same conversation.
package events

// Button payloads carried in callback events.
const (
	PayloadRegister   = "reg_on"
	PayloadUnregister = "reg_off"
	PayloadBuzz       = "buzz"
)

// TimerKind discriminates synthetic timer events.
type TimerKind string

const (
	TimerRegistration TimerKind = "registration"
	TimerAnswer       TimerKind = "answer"
)

// Event is anything routable to a conversation's game.
type Event interface {
	Conversation() int64
}

// MessageEvent is an inbound chat message.
type MessageEvent struct {
	ConversationID int64
	SenderID       int64
	SenderName     string
	Text           string
	MessageRef     int
}

func (e MessageEvent) Conversation() int64 { return e.ConversationID }

// ButtonEvent is an inbound button-press callback.
type ButtonEvent struct {
	ConversationID int64
	SenderID       int64
	SenderName     string
	CallbackID     string
	Payload        string
}

func (e ButtonEvent) Conversation() int64 { return e.ConversationID }

// TimerEvent is a scheduled timeout delivered back through the stream.
// Epoch is the game's timer generation captured at scheduling time; a stale
// epoch makes the event a no-op.
type TimerEvent struct {
	ID             string
	ConversationID int64
	GameID         uint
	Kind           TimerKind
	Epoch          uint64
}

func (e TimerEvent) Conversation() int64 { return e.ConversationID }
