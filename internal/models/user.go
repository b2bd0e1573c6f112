package models

import "time"

// FriendStatus values mirror what the backend sends on friend events.
const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
	FriendStatusActive   = "active"
	FriendStatusDeclined = "declined"
)

// Profile is the server-provided user record cached by the session
// store. The raw base64 image payload from the fetch response is
// normalized into ImageURL and never kept around.
type Profile struct {
	ID          string          `json:"id"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	Email       string          `json:"email"`
	ImageBase64 string          `json:"imageBase64,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Trainer     *TrainerProfile `json:"trainerProfile,omitempty"`
	Friends     []FriendSummary `json:"friends"`
	Plans       []Plan          `json:"plans,omitempty"`
	Preferences Preferences     `json:"preferences,omitempty"`
}

// TrainerProfile is the optional trainer sub-profile.
type TrainerProfile struct {
	Summary    string  `json:"summary"`
	Experience int     `json:"experienceYears"`
	Rating     float64 `json:"rating"`
	Verified   bool    `json:"verified"`
}

// Plan is a placeholder for nutrition/workout plans attached to the
// profile; the client core only carries labels around.
type Plan struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// FriendSummary is the denormalized per-friend chat state embedded in
// the profile. Exactly one entry exists per FriendID.
//
// Revision is a monotonic stamp bumped on every write so the two
// writers (the global friend-event reducer and the chat-room teardown
// snapshot) apply last-write-wins explicitly instead of racing
// silently.
type FriendSummary struct {
	FriendID             string    `json:"friendId" db:"friend_id"`
	ChatRoomID           string    `json:"chatRoomId" db:"chat_room_id"`
	FirstName            string    `json:"firstName,omitempty" db:"first_name"`
	LastName             string    `json:"lastName,omitempty" db:"last_name"`
	Status               string    `json:"status" db:"status"`
	UnreadCount          int       `json:"unreadCount" db:"unread_count"`
	LastMessageID        string    `json:"lastMessageId" db:"last_message_id"`
	LastMessageText      string    `json:"lastMessageText" db:"last_message_text"`
	LastMessageSenderID  string    `json:"lastMessageSenderId" db:"last_message_sender_id"`
	LastMessageTime      time.Time `json:"lastMessageTime" db:"last_message_time"`
	LastMessageHidden    bool      `json:"lastMessageHidden" db:"last_message_hidden"`
	LastMessageDiscarded bool      `json:"lastMessageDiscarded" db:"last_message_discarded"`
	Revision             int64     `json:"revision" db:"-"`
}

// Notification is a generic server-pushed notification.
type Notification struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// FriendRequest is a pending inbound friend request. Declined requests
// are marked in place rather than removed.
type FriendRequest struct {
	ID        string    `json:"id"`
	FromID    string    `json:"fromId"`
	FromName  string    `json:"fromName"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
