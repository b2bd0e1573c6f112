package models

import "time"

// Extra-information payload contexts. Exactly one shape is populated
// per message.
const (
	ContextMealPlan = "mealplan"
	ContextImage    = "image"
	ContextDocument = "document"
	ContextInvite   = "invite/whatsapp"
)

// ExtraInformation is the tagged payload distinguishing text messages
// from structured shares.
type ExtraInformation struct {
	Context   string `json:"context"`
	PlanID    string `json:"planId,omitempty"`
	PlanLabel string `json:"planLabel,omitempty"`
	URL       string `json:"url,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	InviteURL string `json:"inviteUrl,omitempty"`
}

// PreviewText derives the human-readable message field for a
// structured payload.
func (e *ExtraInformation) PreviewText() string {
	if e == nil {
		return ""
	}
	switch e.Context {
	case ContextMealPlan:
		return e.PlanLabel
	case ContextImage:
		return "Image"
	case ContextDocument:
		if e.FileName != "" {
			return e.FileName
		}
		return "Document"
	case ContextInvite:
		return e.InviteURL
	default:
		return ""
	}
}

// ChatMessage is a single message in a room.
//
// Hidden and Discarded are independently toggleable booleans, not a
// combined enum: a message can be hidden by its sender without being
// discarded. SeenBy is append-only while the message is in memory.
type ChatMessage struct {
	ID               string            `json:"id" db:"id"`
	ClientRef        string            `json:"clientRef,omitempty" db:"client_ref"`
	ChatRoomID       string            `json:"chatRoomId" db:"chat_room_id"`
	SenderID         string            `json:"senderId" db:"sender_id"`
	Message          string            `json:"message" db:"message"`
	SeenBy           []string          `json:"seenBy" db:"-"`
	DateTimeSent     time.Time         `json:"dateTimeSent" db:"date_time_sent"`
	Hidden           bool              `json:"hidden" db:"hidden"`
	Discarded        bool              `json:"discarded" db:"discarded"`
	Pending          bool              `json:"pending,omitempty" db:"-"`
	ExtraInformation *ExtraInformation `json:"extraInformation,omitempty" db:"-"`
}

// SeenByUser reports whether the given user id is in the seen set.
func (m *ChatMessage) SeenByUser(userID string) bool {
	for _, id := range m.SeenBy {
		if id == userID {
			return true
		}
	}
	return false
}

// MarkSeenBy appends the user id to the seen set if absent.
func (m *ChatMessage) MarkSeenBy(userID string) {
	if !m.SeenByUser(userID) {
		m.SeenBy = append(m.SeenBy, userID)
	}
}
