// Package sync folds inbound realtime events into the shared
// in-memory view of the user: friends list, notifications, and pending
// friend requests.
package sync

import (
	"sync"
	"time"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
)

// ProfileState is the mutable session-wide view fed by the reducer and
// by chat-room teardown snapshots. Both writers go through methods
// that bump the per-friend revision, making the last-write-wins
// semantics explicit.
type ProfileState struct {
	mu            sync.RWMutex
	user          models.Profile
	notifications []models.Notification
	requests      []models.FriendRequest
}

// NewProfileState seeds the state from a fetched profile.
func NewProfileState(profile models.Profile) *ProfileState {
	return &ProfileState{user: profile}
}

// User returns a copy of the profile with the current friends slice.
func (s *ProfileState) User() models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user := s.user
	user.Friends = append([]models.FriendSummary(nil), s.user.Friends...)
	return user
}

// Friend returns a copy of the summary for the given friend id.
func (s *ProfileState) Friend(friendID string) (models.FriendSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.user.Friends {
		if f.FriendID == friendID {
			return f, true
		}
	}
	return models.FriendSummary{}, false
}

// Notifications returns the newest-first notification list.
func (s *ProfileState) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Notification(nil), s.notifications...)
}

// FriendRequests returns the newest-first pending request list.
func (s *ProfileState) FriendRequests() []models.FriendRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FriendRequest(nil), s.requests...)
}

// RoomSnapshot is the last-message state written back by a closing
// chat room.
type RoomSnapshot struct {
	LastMessageID        string
	LastMessageText      string
	LastMessageSenderID  string
	LastMessageTime      time.Time
	LastMessageHidden    bool
	LastMessageDiscarded bool
}

// ApplyRoomSnapshot overwrites the friend's preview fields and zeroes
// the unread counter. This is the authoritative mechanism that clears
// unread counts; there is no server acknowledgement.
func (s *ProfileState) ApplyRoomSnapshot(friendID string, snap RoomSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.user.Friends {
		f := &s.user.Friends[i]
		if f.FriendID != friendID {
			continue
		}
		if snap.LastMessageID != "" {
			f.LastMessageID = snap.LastMessageID
			f.LastMessageText = snap.LastMessageText
			f.LastMessageSenderID = snap.LastMessageSenderID
			f.LastMessageTime = snap.LastMessageTime
			f.LastMessageHidden = snap.LastMessageHidden
			f.LastMessageDiscarded = snap.LastMessageDiscarded
		}
		f.UnreadCount = 0
		f.Revision++
		return
	}
}

func (s *ProfileState) applyMessageNotification(p models.MessageNotificationPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.user.Friends {
		f := &s.user.Friends[i]
		if f.FriendID != p.SenderID && f.ChatRoomID != p.ChatRoomID {
			continue
		}
		f.UnreadCount++
		f.LastMessageID = p.MessageID
		f.LastMessageText = p.MessageText
		f.LastMessageSenderID = p.SenderID
		f.LastMessageTime = p.DateTimeSent
		f.LastMessageHidden = false
		f.LastMessageDiscarded = false
		f.Revision++
		return
	}
}

// applyVisibility folds a visibility transition into the cached
// preview, but only when the event targets the cached last message;
// stale or out-of-order events drop as no-ops because their message id
// cannot match.
func (s *ProfileState) applyVisibility(p models.MessageVisibilityPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.user.Friends {
		f := &s.user.Friends[i]
		if f.LastMessageID == "" || f.LastMessageID != p.MessageID {
			continue
		}
		f.LastMessageHidden, f.LastMessageDiscarded = models.ApplyVisibility(
			f.LastMessageHidden, f.LastMessageDiscarded, p.Action)
		f.Revision++
		return
	}
}

func (s *ProfileState) applyNotification(n models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append([]models.Notification{n}, s.notifications...)
}

func (s *ProfileState) applyFriendRequest(r models.FriendRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append([]models.FriendRequest{r}, s.requests...)
}

func (s *ProfileState) applyFriendResponse(p models.FriendResponsePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Accepted {
		if p.Friend != nil {
			friend := *p.Friend
			friend.Revision = 1
			s.user.Friends = append(s.user.Friends, friend)
		}
		return
	}
	// Declines stay in the list, marked in place.
	for i := range s.requests {
		if s.requests[i].ID == p.RequestID {
			s.requests[i].Status = models.FriendStatusDeclined
			return
		}
	}
}

func (s *ProfileState) applyFriendStatus(p models.FriendStatusPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.user.Friends {
		if s.user.Friends[i].FriendID == p.FriendID {
			s.user.Friends[i].Status = p.Status
			s.user.Friends[i].Revision++
			return
		}
	}
}
