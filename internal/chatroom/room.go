// Package chatroom drives a single open chat: the ordered message
// list, backward history pagination, and read-state synchronization.
package chatroom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/api"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/realtime"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/sync"
)

var (
	// ErrNoChatRoom means the peer's friend summary carries no room id.
	ErrNoChatRoom = errors.New("no chat room for friend")
	// ErrEmptyMessage rejects sends with neither text nor payload.
	ErrEmptyMessage = errors.New("message requires text or extra information")
	// ErrClosed rejects operations on a closed room.
	ErrClosed = errors.New("room closed")
)

const defaultDebounce = 500 * time.Millisecond

// Channel is the realtime surface a room needs; *realtime.Channel
// satisfies it.
type Channel interface {
	JoinRoom(roomID string)
	LeaveRoom(roomID string)
	Emit(event string, payload any) error
	On(event string, handler realtime.Handler) func()
}

// HistoryFetcher pages backward through stored messages.
type HistoryFetcher interface {
	ChatHistory(ctx context.Context, userID, friendID string, page int) (api.HistoryPage, error)
}

// Room is the per-screen chat session. Create one when the chat opens
// and always Close it on teardown, even if nothing was received.
type Room struct {
	channel  Channel
	history  HistoryFetcher
	state    *sync.ProfileState
	viewerID string
	friendID string
	roomID   string

	debounce time.Duration
	now      func() time.Time

	mu            gosync.Mutex
	messages      []models.ChatMessage
	page          int
	hasMore       bool
	loading       bool
	cooldownUntil time.Time
	nearBottom    bool
	unreadFlag    bool
	pendingScroll bool
	closed        bool
	disposers     []func()
}

// NewRoom wires a room for the chat with the given friend.
func NewRoom(channel Channel, history HistoryFetcher, state *sync.ProfileState, viewerID, friendID string) *Room {
	return &Room{
		channel:    channel,
		history:    history,
		state:      state,
		viewerID:   viewerID,
		friendID:   friendID,
		debounce:   defaultDebounce,
		now:        time.Now,
		nearBottom: true,
		hasMore:    true,
	}
}

// Open resolves the room id from the friend summary, joins the room,
// subscribes to message events, and loads the first history page.
func (r *Room) Open(ctx context.Context) error {
	friend, ok := r.state.Friend(r.friendID)
	if !ok || friend.ChatRoomID == "" {
		return ErrNoChatRoom
	}
	r.roomID = friend.ChatRoomID

	r.channel.JoinRoom(r.roomID)
	r.disposers = []func(){
		r.channel.On(models.EventNewMessage, r.onNewMessage),
		r.channel.On(models.EventUpdatedMessage, r.onUpdatedMessage),
	}

	page, err := r.history.ChatHistory(ctx, r.viewerID, r.friendID, 1)
	if err != nil {
		// A failed open leaves no join or subscriptions behind.
		for _, dispose := range r.disposers {
			dispose()
		}
		r.disposers = nil
		r.channel.LeaveRoom(r.roomID)
		return fmt.Errorf("fetch first page: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.messages = page.Messages
	r.page = 1
	r.hasMore = page.HasMore
	r.pendingScroll = true
	return nil
}

// LoadMore prepends the next history page. It is edge-triggered by the
// view reaching its top: a second trigger while a fetch is in flight
// or inside the cool-down window is dropped, not queued. The page
// cursor advances only on success. Returns whether a fetch ran.
func (r *Room) LoadMore(ctx context.Context) (bool, error) {
	r.mu.Lock()
	if r.closed || r.loading || !r.hasMore || r.now().Before(r.cooldownUntil) {
		r.mu.Unlock()
		return false, nil
	}
	r.loading = true
	nextPage := r.page + 1
	r.mu.Unlock()

	page, err := r.history.ChatHistory(ctx, r.viewerID, r.friendID, nextPage)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = false
	r.cooldownUntil = r.now().Add(r.debounce)
	if err != nil {
		return true, err
	}
	if r.closed {
		// The screen unmounted while the fetch was in flight.
		return true, nil
	}
	r.messages = append(page.Messages, r.messages...)
	r.page = nextPage
	r.hasMore = page.HasMore
	return true, nil
}

// Send emits a message built from free text or a structured payload.
// The message carries a client ref and is held pending until the
// server echo with the same ref replaces it.
func (r *Room) Send(text string, extra *models.ExtraInformation) (models.ChatMessage, error) {
	if text == "" && extra == nil {
		return models.ChatMessage{}, ErrEmptyMessage
	}
	if extra != nil {
		text = extra.PreviewText()
	}

	msg := models.ChatMessage{
		ClientRef:        uuid.NewString(),
		ChatRoomID:       r.roomID,
		SenderID:         r.viewerID,
		Message:          text,
		SeenBy:           []string{r.viewerID},
		DateTimeSent:     r.now().UTC(),
		Pending:          true,
		ExtraInformation: extra,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return models.ChatMessage{}, ErrClosed
	}
	r.messages = append(r.messages, msg)
	r.mu.Unlock()

	if err := r.channel.Emit(models.EventSendMessage, msg); err != nil {
		log.Printf("chatroom send emit failed: %v", err)
	}
	return msg, nil
}

// UpdateMessageVisibility emits one of the four soft-moderation
// transitions for a message the viewer sent.
func (r *Room) UpdateMessageVisibility(messageID, action string) {
	_ = r.channel.Emit(models.EventUpdateMessage, models.MessageVisibilityPayload{
		ChatRoomID: r.roomID,
		MessageID:  messageID,
		SenderID:   r.viewerID,
		Action:     action,
	})
}

// Close always runs the teardown protocol: a best-effort mark-seen
// carrying every loaded message id, a leave-room emission, handler
// disposal, and the friend-summary snapshot that zeroes the unread
// counter. Idempotent.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	ids := make([]string, 0, len(r.messages))
	for _, m := range r.messages {
		ids = append(ids, m.ID)
	}
	var last *models.ChatMessage
	if len(r.messages) > 0 {
		m := r.messages[len(r.messages)-1]
		last = &m
	}
	r.mu.Unlock()

	_ = r.channel.Emit(models.EventMarkSeen, models.MarkSeenPayload{
		ChatRoomID: r.roomID,
		MessageIDs: ids,
		ViewerID:   r.viewerID,
	})
	r.channel.LeaveRoom(r.roomID)
	for _, dispose := range r.disposers {
		dispose()
	}

	snap := sync.RoomSnapshot{}
	if last != nil {
		snap = sync.RoomSnapshot{
			LastMessageID:        last.ID,
			LastMessageText:      last.Message,
			LastMessageSenderID:  last.SenderID,
			LastMessageTime:      last.DateTimeSent,
			LastMessageHidden:    last.Hidden,
			LastMessageDiscarded: last.Discarded,
		}
	}
	r.state.ApplyRoomSnapshot(r.friendID, snap)
}

// Messages returns a copy of the current ordered message list.
func (r *Room) Messages() []models.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ChatMessage(nil), r.messages...)
}

// SetNearBottom records whether the viewer is scrolled near the tail;
// it decides between immediate read marking and the unread indicator.
func (r *Room) SetNearBottom(near bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nearBottom = near
	if near {
		r.unreadFlag = false
	}
}

// UnreadIndicator reports whether messages arrived while scrolled up.
func (r *Room) UnreadIndicator() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unreadFlag
}

// ConsumeScrollToBottom pops the scroll signal set after the first
// page renders.
func (r *Room) ConsumeScrollToBottom() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := r.pendingScroll
	r.pendingScroll = false
	return pending
}

// HasMore reports the server-supplied more-pages flag.
func (r *Room) HasMore() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasMore
}

func (r *Room) onNewMessage(payload json.RawMessage) {
	var msg models.ChatMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("chatroom dropped undecodable message: %v", err)
		return
	}
	if msg.ChatRoomID != r.roomID {
		return
	}

	var markSeen string
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if msg.ClientRef != "" {
		if i := r.indexOfClientRef(msg.ClientRef); i >= 0 {
			// Server echo of our own send: swap the pending entry for
			// the canonical record.
			msg.Pending = false
			r.messages[i] = msg
			r.mu.Unlock()
			return
		}
	}
	if r.nearBottom {
		msg.MarkSeenBy(r.viewerID)
		markSeen = msg.ID
	} else {
		r.unreadFlag = true
	}
	r.messages = append(r.messages, msg)
	r.mu.Unlock()

	if markSeen != "" {
		_ = r.channel.Emit(models.EventMarkSeen, models.MarkSeenPayload{
			ChatRoomID: r.roomID,
			MessageIDs: []string{markSeen},
			ViewerID:   r.viewerID,
		})
	}
}

func (r *Room) onUpdatedMessage(payload json.RawMessage) {
	var update models.MessageVisibilityPayload
	if err := json.Unmarshal(payload, &update); err != nil {
		log.Printf("chatroom dropped undecodable update: %v", err)
		return
	}
	if update.ChatRoomID != "" && update.ChatRoomID != r.roomID {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == update.MessageID {
			r.messages[i].Hidden, r.messages[i].Discarded = models.ApplyVisibility(
				r.messages[i].Hidden, r.messages[i].Discarded, update.Action)
			return
		}
	}
}

func (r *Room) indexOfClientRef(ref string) int {
	for i := range r.messages {
		if r.messages[i].ClientRef == ref && r.messages[i].Pending {
			return i
		}
	}
	return -1
}
