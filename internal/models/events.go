package models

import (
	"encoding/json"
	"time"
)

// Outbound events emitted by the client.
const (
	EventAuth          = "auth"
	EventJoinRoom      = "join-room"
	EventLeaveRoom     = "leave-room"
	EventSendMessage   = "send-message"
	EventUpdateMessage = "update-message"
	EventMarkSeen      = "mark-seen"
)

// Inbound events pushed by the backend.
const (
	EventNewMessage               = "new-message"
	EventUpdatedMessage           = "updated-message"
	EventNewMessageNotification   = "new-message-notification"
	EventUpdatedMessageVisibility = "updated-message-visibility"
	EventNewNotification          = "new-notification"
	EventNewFriendRequest         = "new-friend-request"
	EventNewFriendResponse        = "new-friend-response"
	EventNewFriendStatus          = "new-friend-status"
)

// Envelope is the wire frame for every websocket event in both
// directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals the payload into an Envelope. Marshal failures
// surface to the caller; nothing is sent half-encoded.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Payload: raw}, nil
}

// AuthPayload is the connection-time auth frame.
type AuthPayload struct {
	Token string `json:"token"`
}

// RoomPayload scopes join/leave emissions.
type RoomPayload struct {
	ChatRoomID string `json:"chatRoomId"`
}

// MarkSeenPayload carries every loaded message id plus the viewer.
type MarkSeenPayload struct {
	ChatRoomID string   `json:"chatRoomId"`
	MessageIDs []string `json:"messageIds"`
	ViewerID   string   `json:"viewerId"`
}

// Visibility actions applied to a message by update-message events.
const (
	VisibilityHide    = "hide"
	VisibilityUnhide  = "unhide"
	VisibilityDiscard = "discard"
	VisibilityRestore = "restore"
)

// ApplyVisibility folds one of the four transitions into the hidden /
// discarded flag pair. Unknown actions are ignored.
func ApplyVisibility(hidden, discarded bool, action string) (bool, bool) {
	switch action {
	case VisibilityHide:
		hidden = true
	case VisibilityUnhide:
		hidden = false
	case VisibilityDiscard:
		discarded = true
	case VisibilityRestore:
		discarded = false
	}
	return hidden, discarded
}

// MessageVisibilityPayload is sent outbound on update-message and
// received on updated-message / updated-message-visibility.
type MessageVisibilityPayload struct {
	ChatRoomID string `json:"chatRoomId"`
	MessageID  string `json:"messageId"`
	SenderID   string `json:"senderId,omitempty"`
	Action     string `json:"action"`
}

// MessageNotificationPayload announces a message to the recipient
// outside the room.
type MessageNotificationPayload struct {
	FriendID     string    `json:"friendId"`
	ChatRoomID   string    `json:"chatRoomId"`
	MessageID    string    `json:"messageId"`
	MessageText  string    `json:"messageText"`
	SenderID     string    `json:"senderId"`
	DateTimeSent time.Time `json:"dateTimeSent"`
}

// FriendResponsePayload resolves a pending friend request.
type FriendResponsePayload struct {
	RequestID string         `json:"requestId"`
	Accepted  bool           `json:"accepted"`
	Friend    *FriendSummary `json:"friend,omitempty"`
}

// FriendStatusPayload overwrites a friend's status by id match.
type FriendStatusPayload struct {
	FriendID string `json:"friendId"`
	Status   string `json:"status"`
}
