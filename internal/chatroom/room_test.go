package chatroom

import (
	"context"
	"encoding/json"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/api"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/mocks"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/realtime"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/sync"
)

var _ HistoryFetcher = (*mocks.HistoryFetcherMock)(nil)

type emission struct {
	event   string
	payload any
}

// fakeChannel records emissions and lets tests push inbound events.
type fakeChannel struct {
	mu       gosync.Mutex
	joined   []string
	left     []string
	emitted  []emission
	handlers map[string][]realtime.Handler
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string][]realtime.Handler)}
}

func (c *fakeChannel) JoinRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = append(c.joined, roomID)
}

func (c *fakeChannel) LeaveRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.left = append(c.left, roomID)
}

func (c *fakeChannel) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitted = append(c.emitted, emission{event: event, payload: payload})
	return nil
}

func (c *fakeChannel) On(event string, handler realtime.Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
	idx := len(c.handlers[event]) - 1
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.handlers[event][idx] = nil
	}
}

func (c *fakeChannel) push(t *testing.T, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	c.mu.Lock()
	handlers := append([]realtime.Handler(nil), c.handlers[event]...)
	c.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			h(raw)
		}
	}
}

func (c *fakeChannel) emissions(event string) []emission {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []emission
	for _, e := range c.emitted {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func seededState(unread int) *sync.ProfileState {
	return sync.NewProfileState(models.Profile{
		ID: "me",
		Friends: []models.FriendSummary{
			{FriendID: "f1", ChatRoomID: "room-1", Status: models.FriendStatusActive, UnreadCount: unread},
		},
	})
}

func openedRoom(t *testing.T, channel *fakeChannel, history *mocks.HistoryFetcherMock, state *sync.ProfileState, firstPage api.HistoryPage) *Room {
	t.Helper()
	history.On("ChatHistory", mock.Anything, "me", "f1", 1).Return(firstPage, nil).Once()

	room := NewRoom(channel, history, state, "me", "f1")
	require.NoError(t, room.Open(context.Background()))
	return room
}

func TestOpenJoinsRoomAndLoadsFirstPage(t *testing.T) {
	channel := newFakeChannel()
	history := new(mocks.HistoryFetcherMock)
	room := openedRoom(t, channel, history, seededState(0), api.HistoryPage{
		Messages: []models.ChatMessage{{ID: "m1", ChatRoomID: "room-1"}},
		HasMore:  true,
	})

	assert.Equal(t, []string{"room-1"}, channel.joined)
	require.Len(t, room.Messages(), 1)
	assert.True(t, room.ConsumeScrollToBottom())
	assert.False(t, room.ConsumeScrollToBottom())
	history.AssertExpectations(t)
}

func TestOpenWithoutRoomIDFails(t *testing.T) {
	state := sync.NewProfileState(models.Profile{ID: "me"})
	room := NewRoom(newFakeChannel(), new(mocks.HistoryFetcherMock), state, "me", "f1")
	require.ErrorIs(t, room.Open(context.Background()), ErrNoChatRoom)
}

func TestOpenFailureLeavesRoomAndDropsSubscriptions(t *testing.T) {
	channel := newFakeChannel()
	history := new(mocks.HistoryFetcherMock)
	history.On("ChatHistory", mock.Anything, "me", "f1", 1).Return(api.HistoryPage{}, assert.AnError).Once()

	room := NewRoom(channel, history, seededState(0), "me", "f1")
	require.Error(t, room.Open(context.Background()))

	assert.Equal(t, []string{"room-1"}, channel.joined)
	assert.Equal(t, []string{"room-1"}, channel.left)

	// The handlers registered during the failed open are gone.
	channel.push(t, models.EventNewMessage, models.ChatMessage{
		ID: "m1", ChatRoomID: "room-1", SenderID: "f1",
	})
	assert.Empty(t, room.Messages())
	assert.Empty(t, channel.emissions(models.EventMarkSeen))
}

func TestLoadMoreDebounce(t *testing.T) {
	channel := newFakeChannel()
	history := new(mocks.HistoryFetcherMock)
	room := openedRoom(t, channel, history, seededState(0), api.HistoryPage{
		Messages: []models.ChatMessage{{ID: "m3", ChatRoomID: "room-1"}},
		HasMore:  true,
	})

	clock := time.Now()
	room.now = func() time.Time { return clock }

	history.On("ChatHistory", mock.Anything, "me", "f1", 2).Return(api.HistoryPage{
		Messages: []models.ChatMessage{{ID: "m2", ChatRoomID: "room-1"}},
		HasMore:  true,
	}, nil).Once()
	history.On("ChatHistory", mock.Anything, "me", "f1", 3).Return(api.HistoryPage{
		Messages: []models.ChatMessage{{ID: "m1", ChatRoomID: "room-1"}},
		HasMore:  false,
	}, nil).Once()

	ran, err := room.LoadMore(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)

	// Second trigger inside the cool-down window is dropped.
	ran, err = room.LoadMore(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)

	clock = clock.Add(600 * time.Millisecond)
	ran, err = room.LoadMore(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)

	// Pages prepend; oldest ends up first.
	msgs := room.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m3", msgs[2].ID)
	assert.False(t, room.HasMore())
	history.AssertExpectations(t)

	// hasMore=false gates further fetches entirely.
	clock = clock.Add(time.Second)
	ran, _ = room.LoadMore(context.Background())
	assert.False(t, ran)
}

func TestSendDerivesPreviewFromMealPlanPayload(t *testing.T) {
	channel := newFakeChannel()
	history := new(mocks.HistoryFetcherMock)
	room := openedRoom(t, channel, history, seededState(0), api.HistoryPage{})

	msg, err := room.Send("", &models.ExtraInformation{
		Context:   models.ContextMealPlan,
		PlanLabel: "Bulk Plan",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bulk Plan", msg.Message)
	assert.Equal(t, []string{"me"}, msg.SeenBy)
	assert.True(t, msg.Pending)
	assert.NotEmpty(t, msg.ClientRef)
	assert.False(t, msg.DateTimeSent.IsZero())

	sent := channel.emissions(models.EventSendMessage)
	require.Len(t, sent, 1)
	assert.Equal(t, "Bulk Plan", sent[0].payload.(models.ChatMessage).Message)
}

func TestSendRequiresTextOrPayload(t *testing.T) {
	room := openedRoom(t, newFakeChannel(), new(mocks.HistoryFetcherMock), seededState(0), api.HistoryPage{})
	_, err := room.Send("", nil)
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestServerEchoReplacesPendingMessage(t *testing.T) {
	channel := newFakeChannel()
	room := openedRoom(t, channel, new(mocks.HistoryFetcherMock), seededState(0), api.HistoryPage{})

	msg, err := room.Send("hello", nil)
	require.NoError(t, err)

	echo := msg
	echo.ID = "srv-1"
	echo.Pending = false
	echo.DateTimeSent = time.Now().UTC()
	channel.push(t, models.EventNewMessage, echo)

	msgs := room.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.False(t, msgs[0].Pending)
}

func TestInboundMessageNearBottomMarksSeenImmediately(t *testing.T) {
	channel := newFakeChannel()
	room := openedRoom(t, channel, new(mocks.HistoryFetcherMock), seededState(0), api.HistoryPage{})

	channel.push(t, models.EventNewMessage, models.ChatMessage{
		ID: "m1", ChatRoomID: "room-1", SenderID: "f1", Message: "hey",
	})

	msgs := room.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].SeenByUser("me"))
	assert.False(t, room.UnreadIndicator())

	seen := channel.emissions(models.EventMarkSeen)
	require.Len(t, seen, 1)
	assert.Equal(t, []string{"m1"}, seen[0].payload.(models.MarkSeenPayload).MessageIDs)
}

func TestInboundMessageWhileScrolledUpSetsUnreadIndicator(t *testing.T) {
	channel := newFakeChannel()
	room := openedRoom(t, channel, new(mocks.HistoryFetcherMock), seededState(0), api.HistoryPage{})
	room.SetNearBottom(false)

	channel.push(t, models.EventNewMessage, models.ChatMessage{
		ID: "m1", ChatRoomID: "room-1", SenderID: "f1", Message: "hey",
	})

	assert.True(t, room.UnreadIndicator())
	assert.Empty(t, channel.emissions(models.EventMarkSeen))

	room.SetNearBottom(true)
	assert.False(t, room.UnreadIndicator())
}

func TestInboundMessageForOtherRoomIgnored(t *testing.T) {
	channel := newFakeChannel()
	room := openedRoom(t, channel, new(mocks.HistoryFetcherMock), seededState(0), api.HistoryPage{})

	channel.push(t, models.EventNewMessage, models.ChatMessage{
		ID: "x", ChatRoomID: "other-room", SenderID: "f9",
	})
	assert.Empty(t, room.Messages())
}

func TestUpdatedMessageAppliesVisibilityByID(t *testing.T) {
	channel := newFakeChannel()
	room := openedRoom(t, channel, new(mocks.HistoryFetcherMock), seededState(0), api.HistoryPage{
		Messages: []models.ChatMessage{{ID: "m1", ChatRoomID: "room-1"}},
	})

	channel.push(t, models.EventUpdatedMessage, models.MessageVisibilityPayload{
		ChatRoomID: "room-1", MessageID: "m1", Action: models.VisibilityHide,
	})
	assert.True(t, room.Messages()[0].Hidden)
	assert.False(t, room.Messages()[0].Discarded)

	channel.push(t, models.EventUpdatedMessage, models.MessageVisibilityPayload{
		ChatRoomID: "room-1", MessageID: "m1", Action: models.VisibilityDiscard,
	})
	assert.True(t, room.Messages()[0].Hidden)
	assert.True(t, room.Messages()[0].Discarded)
}

func TestCloseRunsTeardownProtocolAndClearsUnread(t *testing.T) {
	channel := newFakeChannel()
	state := seededState(3)
	room := openedRoom(t, channel, new(mocks.HistoryFetcherMock), state, api.HistoryPage{
		Messages: []models.ChatMessage{
			{ID: "m1", ChatRoomID: "room-1", SenderID: "f1", Message: "first"},
			{ID: "m2", ChatRoomID: "room-1", SenderID: "me", Message: "last"},
		},
	})

	room.Close()

	seen := channel.emissions(models.EventMarkSeen)
	require.Len(t, seen, 1)
	payload := seen[0].payload.(models.MarkSeenPayload)
	assert.Equal(t, []string{"m1", "m2"}, payload.MessageIDs)
	assert.Equal(t, "me", payload.ViewerID)
	assert.Equal(t, []string{"room-1"}, channel.left)

	friend, _ := state.Friend("f1")
	assert.Zero(t, friend.UnreadCount)
	assert.Equal(t, "m2", friend.LastMessageID)
	assert.Equal(t, "last", friend.LastMessageText)

	// Close is idempotent and later events are dropped.
	room.Close()
	channel.push(t, models.EventNewMessage, models.ChatMessage{ID: "m3", ChatRoomID: "room-1"})
	assert.Len(t, room.Messages(), 2)
}

func TestCloseWithNoMessagesStillZeroesUnread(t *testing.T) {
	channel := newFakeChannel()
	state := seededState(2)
	room := openedRoom(t, channel, new(mocks.HistoryFetcherMock), state, api.HistoryPage{})

	room.Close()

	friend, _ := state.Friend("f1")
	assert.Zero(t, friend.UnreadCount)
	require.Len(t, channel.emissions(models.EventMarkSeen), 1)
}
