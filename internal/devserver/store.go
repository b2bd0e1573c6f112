package devserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrNoFriendLink   = errors.New("users are not friends")
	ErrUnknownMessage = errors.New("message not found")
)

// User is a stored account on the stub.
type User struct {
	ID           string `db:"id"`
	FirstName    string `db:"first_name"`
	LastName     string `db:"last_name"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	ImageBase64  string `db:"image_base64"`
}

// Store is the sqlx-backed persistence for the dev stub.
type Store struct {
	db *sqlx.DB
}

// Connect opens the database and applies migrations.
func Connect(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing connection; tests use this.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            first_name TEXT NOT NULL,
            last_name TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            image_base64 TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS friend_links (
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            friend_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            chat_room_id TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'active',
            PRIMARY KEY(user_id, friend_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            client_ref TEXT NOT NULL DEFAULT '',
            chat_room_id TEXT NOT NULL,
            sender_id TEXT NOT NULL,
            message TEXT NOT NULL,
            hidden BOOLEAN NOT NULL DEFAULT FALSE,
            discarded BOOLEAN NOT NULL DEFAULT FALSE,
            date_time_sent TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            extra_information JSONB
        );`,
		`CREATE TABLE IF NOT EXISTS message_seen (
            message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            PRIMARY KEY(message_id, user_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}

// UserByEmail loads an account for login.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user,
		`SELECT id, first_name, last_name, email, password_hash, image_base64 FROM users WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

// UserByID loads an account for the profile endpoint.
func (s *Store) UserByID(ctx context.Context, id string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user,
		`SELECT id, first_name, last_name, email, password_hash, image_base64 FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

// FriendSummaries returns the denormalized friend list for a user,
// with last-message previews and unread counts computed server-side.
func (s *Store) FriendSummaries(ctx context.Context, userID string) ([]models.FriendSummary, error) {
	type row struct {
		FriendID   string `db:"friend_id"`
		ChatRoomID string `db:"chat_room_id"`
		Status     string `db:"status"`
		FirstName  string `db:"first_name"`
		LastName   string `db:"last_name"`
	}
	var links []row
	err := s.db.SelectContext(ctx, &links,
		`SELECT fl.friend_id, fl.chat_room_id, fl.status, u.first_name, u.last_name
         FROM friend_links fl JOIN users u ON u.id = fl.friend_id
         WHERE fl.user_id=$1`, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.FriendSummary, 0, len(links))
	for _, link := range links {
		summary := models.FriendSummary{
			FriendID:   link.FriendID,
			ChatRoomID: link.ChatRoomID,
			Status:     link.Status,
			FirstName:  link.FirstName,
			LastName:   link.LastName,
		}

		var last models.ChatMessage
		err := s.db.GetContext(ctx, &last,
			`SELECT id, client_ref, chat_room_id, sender_id, message, hidden, discarded, date_time_sent
             FROM messages WHERE chat_room_id=$1 ORDER BY date_time_sent DESC LIMIT 1`, link.ChatRoomID)
		if err == nil {
			summary.LastMessageID = last.ID
			summary.LastMessageText = last.Message
			summary.LastMessageSenderID = last.SenderID
			summary.LastMessageTime = last.DateTimeSent
			summary.LastMessageHidden = last.Hidden
			summary.LastMessageDiscarded = last.Discarded
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		if err := s.db.GetContext(ctx, &summary.UnreadCount,
			`SELECT COUNT(*) FROM messages m
             WHERE m.chat_room_id=$1 AND m.sender_id<>$2
             AND NOT EXISTS (SELECT 1 FROM message_seen ms WHERE ms.message_id=m.id AND ms.user_id=$2)`,
			link.ChatRoomID, userID); err != nil {
			return nil, err
		}

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ChatRoomID resolves the room shared by two friends.
func (s *Store) ChatRoomID(ctx context.Context, userID, friendID string) (string, error) {
	var roomID string
	err := s.db.GetContext(ctx, &roomID,
		`SELECT chat_room_id FROM friend_links WHERE user_id=$1 AND friend_id=$2`, userID, friendID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoFriendLink
	}
	return roomID, err
}

// RoomParticipants lists the user ids attached to a room.
func (s *Store) RoomParticipants(ctx context.Context, roomID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT user_id FROM friend_links WHERE chat_room_id=$1`, roomID)
	return ids, err
}

// messageRow pairs a message with its raw structured payload column.
type messageRow struct {
	models.ChatMessage
	ExtraRaw []byte `db:"extra_information"`
}

func (r messageRow) message() models.ChatMessage {
	msg := r.ChatMessage
	if len(r.ExtraRaw) > 0 {
		var extra models.ExtraInformation
		if err := json.Unmarshal(r.ExtraRaw, &extra); err == nil {
			msg.ExtraInformation = &extra
		}
	}
	return msg
}

const historyPageSize = 20

// History pages backward through a room's messages. Page 1 is the
// newest slice; each page is returned oldest-first so clients prepend
// directly.
func (s *Store) History(ctx context.Context, roomID string, page int) ([]models.ChatMessage, bool, error) {
	if page < 1 {
		page = 1
	}
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, client_ref, chat_room_id, sender_id, message, hidden, discarded, date_time_sent, extra_information
         FROM messages WHERE chat_room_id=$1
         ORDER BY date_time_sent DESC LIMIT $2 OFFSET $3`,
		roomID, historyPageSize+1, (page-1)*historyPageSize)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(rows) > historyPageSize
	if hasMore {
		rows = rows[:historyPageSize]
	}
	msgs := make([]models.ChatMessage, len(rows))
	for i, row := range rows {
		msgs[i] = row.message()
	}
	// Reverse into ascending order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	if err := s.attachSeenBy(ctx, msgs); err != nil {
		return nil, false, err
	}
	return msgs, hasMore, nil
}

func (s *Store) attachSeenBy(ctx context.Context, msgs []models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, len(msgs))
	index := make(map[string]int, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
		index[m.ID] = i
	}

	type seenRow struct {
		MessageID string `db:"message_id"`
		UserID    string `db:"user_id"`
	}
	var rows []seenRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT message_id, user_id FROM message_seen WHERE message_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return err
	}
	for _, row := range rows {
		i := index[row.MessageID]
		msgs[i].SeenBy = append(msgs[i].SeenBy, row.UserID)
	}
	return nil
}

// SaveMessage persists an inbound message, its structured payload, and
// the sender's seen mark.
func (s *Store) SaveMessage(ctx context.Context, msg models.ChatMessage) error {
	var extraJSON []byte
	if msg.ExtraInformation != nil {
		var err error
		extraJSON, err = json.Marshal(msg.ExtraInformation)
		if err != nil {
			return err
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, client_ref, chat_room_id, sender_id, message, hidden, discarded, date_time_sent, extra_information)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		msg.ID, msg.ClientRef, msg.ChatRoomID, msg.SenderID, msg.Message, msg.Hidden, msg.Discarded, msg.DateTimeSent, extraJSON)
	if err != nil {
		return err
	}
	for _, seen := range msg.SeenBy {
		if err := s.MarkSeen(ctx, msg.ID, seen); err != nil {
			return err
		}
	}
	return nil
}

// ApplyVisibility folds a visibility action into a stored message.
func (s *Store) ApplyVisibility(ctx context.Context, messageID, action string) error {
	var msg models.ChatMessage
	err := s.db.GetContext(ctx, &msg,
		`SELECT id, client_ref, chat_room_id, sender_id, message, hidden, discarded, date_time_sent
         FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUnknownMessage
	}
	if err != nil {
		return err
	}

	hidden, discarded := models.ApplyVisibility(msg.Hidden, msg.Discarded, action)
	_, err = s.db.ExecContext(ctx,
		`UPDATE messages SET hidden=$1, discarded=$2 WHERE id=$3`, hidden, discarded, messageID)
	return err
}

// MarkSeen records that a user has seen a message.
func (s *Store) MarkSeen(ctx context.Context, messageID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_seen (message_id, user_id) VALUES ($1, $2)
         ON CONFLICT (message_id, user_id) DO NOTHING`, messageID, userID)
	return err
}
