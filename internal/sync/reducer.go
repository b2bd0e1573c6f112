package sync

import (
	"encoding/json"
	"log"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/realtime"
)

// EventSource is the subscription surface Bind needs; *realtime.Channel
// satisfies it.
type EventSource interface {
	On(event string, handler realtime.Handler) func()
}

// Bind subscribes the six friend-level events and folds each into the
// state as received; there are no sequence numbers, so delivery order
// is whatever the transport provides. The returned function removes
// all subscriptions and must run on teardown so remounts do not
// accumulate duplicate handlers.
func Bind(source EventSource, state *ProfileState) func() {
	disposers := []func(){
		source.On(models.EventNewMessageNotification, decodeInto(state.applyMessageNotification)),
		source.On(models.EventUpdatedMessageVisibility, decodeInto(state.applyVisibility)),
		source.On(models.EventNewNotification, decodeInto(state.applyNotification)),
		source.On(models.EventNewFriendRequest, decodeInto(state.applyFriendRequest)),
		source.On(models.EventNewFriendResponse, decodeInto(state.applyFriendResponse)),
		source.On(models.EventNewFriendStatus, decodeInto(state.applyFriendStatus)),
	}

	return func() {
		for _, dispose := range disposers {
			dispose()
		}
	}
}

func decodeInto[T any](apply func(T)) realtime.Handler {
	return func(payload json.RawMessage) {
		var decoded T
		if err := json.Unmarshal(payload, &decoded); err != nil {
			log.Printf("sync: dropped undecodable event payload: %v", err)
			return
		}
		apply(decoded)
	}
}
