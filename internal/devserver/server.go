package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/observability"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/telemetry"
)

// envelope is the REST response frame. Every endpoint answers with it,
// success or not.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(data any) envelope {
	return envelope{Success: true, Data: data}
}

func fail(message string) envelope {
	return envelope{Success: false, Message: message}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the development stub the client core talks to. It serves
// the REST bootstrap endpoints and the realtime websocket.
type Server struct {
	store  *Store
	tokens *TokenIssuer
	hub    *Hub
	audit  *telemetry.AuditEmitter
}

func NewServer(store *Store, tokens *TokenIssuer, audit *telemetry.AuditEmitter) *Server {
	return &Server{
		store:  store,
		tokens: tokens,
		hub:    NewHub(),
		audit:  audit,
	}
}

// Router builds the gin engine with tracing and metrics middleware.
func (s *Server) Router(serviceName string, debugRoutes bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, ok(gin.H{"status": "up"}))
	})

	router.POST("/auth/login", s.handleLogin)
	router.GET("/users/me", s.authRequired, s.handleProfile)
	router.GET("/chats/history", s.authRequired, s.handleHistory)
	router.GET("/ws", s.handleWS)

	s.registerDebugRoutes(router, debugRoutes)

	return router
}

// authRequired validates the Bearer token and stashes the user id.
func (s *Server) authRequired(c *gin.Context) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		c.AbortWithStatusJSON(http.StatusUnauthorized, fail("missing bearer token"))
		return
	}

	userID, err := s.tokens.Validate(header[len(prefix):])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, fail("invalid token"))
		return
	}
	c.Set("userID", userID)
	c.Next()
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, fail("email and password required"))
		return
	}

	user, err := s.store.UserByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, ErrUserNotFound) || (err == nil && !CheckPassword(user.PasswordHash, req.Password)) {
		c.JSON(http.StatusUnauthorized, fail("invalid credentials"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, fail("login failed"))
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, fail("login failed"))
		return
	}

	s.audit.Emit(c.Request.Context(), "info", "user login", observability.MetaFromRequest(c.Request), user.ID)
	c.JSON(http.StatusOK, ok(gin.H{"token": token, "userId": user.ID}))
}

func (s *Server) handleProfile(c *gin.Context) {
	userID := c.GetString("userID")

	user, err := s.store.UserByID(c.Request.Context(), userID)
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusNotFound, fail("user not found"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, fail("profile lookup failed"))
		return
	}

	friends, err := s.store.FriendSummaries(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, fail("profile lookup failed"))
		return
	}

	profile := models.Profile{
		ID:          user.ID,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Email:       user.Email,
		ImageBase64: user.ImageBase64,
		Friends:     friends,
	}
	c.JSON(http.StatusOK, ok(profile))
}

func (s *Server) handleHistory(c *gin.Context) {
	userID := c.GetString("userID")
	if c.Query("userId") != userID {
		c.JSON(http.StatusForbidden, fail("history is scoped to the authenticated user"))
		return
	}
	friendID := c.Query("friendId")
	if friendID == "" {
		c.JSON(http.StatusBadRequest, fail("friendId required"))
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	roomID, err := s.store.ChatRoomID(c.Request.Context(), userID, friendID)
	if errors.Is(err, ErrNoFriendLink) {
		c.JSON(http.StatusNotFound, fail("no chat room for this pair"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, fail("history lookup failed"))
		return
	}

	messages, hasMore, err := s.store.History(c.Request.Context(), roomID, page)
	if err != nil {
		c.JSON(http.StatusInternalServerError, fail("history lookup failed"))
		return
	}

	c.JSON(http.StatusOK, ok(gin.H{"messages": messages, "hasMore": hasMore}))
}

// handleWS upgrades the connection and runs the per-connection event
// loop. The first frame must be an auth envelope; everything before a
// valid token is rejected by closing the socket.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	userID, authOK := s.awaitAuth(conn)
	if !authOK {
		_ = conn.Close()
		return
	}

	meta := observability.MetaFromRequest(c.Request)
	cl := &client{userID: userID, conn: conn, meta: meta}
	s.hub.Attach(cl)
	log.Printf("ws connected user=%s ip=%s device=%s", userID, meta.IP, meta.DeviceID)

	defer func() {
		s.hub.Detach(cl)
		_ = conn.Close()
		log.Printf("ws disconnected user=%s", userID)
	}()

	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		observability.IncWSEvent("inbound", env.Event)
		s.dispatch(c.Request.Context(), cl, env)
	}
}

func (s *Server) awaitAuth(conn *websocket.Conn) (string, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	var env models.Envelope
	if err := conn.ReadJSON(&env); err != nil || env.Event != models.EventAuth {
		return "", false
	}
	var payload models.AuthPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return "", false
	}
	userID, err := s.tokens.Validate(payload.Token)
	if err != nil {
		return "", false
	}
	return userID, true
}

func (s *Server) dispatch(ctx context.Context, cl *client, env models.Envelope) {
	switch env.Event {
	case models.EventJoinRoom:
		var p models.RoomPayload
		if json.Unmarshal(env.Payload, &p) == nil && p.ChatRoomID != "" {
			s.hub.JoinRoom(p.ChatRoomID, cl)
		}
	case models.EventLeaveRoom:
		var p models.RoomPayload
		if json.Unmarshal(env.Payload, &p) == nil && p.ChatRoomID != "" {
			s.hub.LeaveRoom(p.ChatRoomID, cl)
		}
	case models.EventSendMessage:
		var msg models.ChatMessage
		if json.Unmarshal(env.Payload, &msg) == nil {
			s.handleSendMessage(ctx, cl, msg)
		}
	case models.EventUpdateMessage:
		var p models.MessageVisibilityPayload
		if json.Unmarshal(env.Payload, &p) == nil {
			s.handleUpdateMessage(ctx, cl, p)
		}
	case models.EventMarkSeen:
		var p models.MarkSeenPayload
		if json.Unmarshal(env.Payload, &p) == nil {
			for _, id := range p.MessageIDs {
				if err := s.store.MarkSeen(ctx, id, p.ViewerID); err != nil {
					log.Printf("mark seen failed message=%s: %v", id, err)
				}
			}
		}
	default:
		log.Printf("ws unknown event=%q user=%s", env.Event, cl.userID)
	}
}

// handleSendMessage persists the message, echoes it into the room with
// the sender's clientRef intact, and pushes a notification to every
// room participant who is not currently watching the room.
func (s *Server) handleSendMessage(ctx context.Context, cl *client, msg models.ChatMessage) {
	if msg.ChatRoomID == "" || msg.Message == "" {
		return
	}

	msg.ID = uuid.NewString()
	msg.SenderID = cl.userID
	msg.DateTimeSent = time.Now().UTC()
	msg.Hidden = false
	msg.Discarded = false
	msg.Pending = false
	msg.MarkSeenBy(cl.userID)

	if err := s.store.SaveMessage(ctx, msg); err != nil {
		log.Printf("save message failed room=%s: %v", msg.ChatRoomID, err)
		return
	}

	echo, err := models.NewEnvelope(models.EventNewMessage, msg)
	if err != nil {
		return
	}
	s.hub.BroadcastRoom(msg.ChatRoomID, echo)

	participants, err := s.store.RoomParticipants(ctx, msg.ChatRoomID)
	if err != nil {
		log.Printf("participants lookup failed room=%s: %v", msg.ChatRoomID, err)
		return
	}
	for _, participant := range participants {
		if participant == cl.userID || s.hub.InRoom(msg.ChatRoomID, participant) {
			continue
		}
		notification, err := models.NewEnvelope(models.EventNewMessageNotification, models.MessageNotificationPayload{
			FriendID:     cl.userID,
			ChatRoomID:   msg.ChatRoomID,
			MessageID:    msg.ID,
			MessageText:  msg.Message,
			SenderID:     cl.userID,
			DateTimeSent: msg.DateTimeSent,
		})
		if err != nil {
			continue
		}
		s.hub.SendToUser(participant, notification)
	}

	s.audit.Emit(ctx, "info", "message sent", cl.meta, cl.userID)
}

// handleUpdateMessage folds the visibility action into storage, echoes
// updated-message into the room, and pushes the preview-refresh event
// to participants outside the room.
func (s *Server) handleUpdateMessage(ctx context.Context, cl *client, p models.MessageVisibilityPayload) {
	if p.ChatRoomID == "" || p.MessageID == "" {
		return
	}

	if err := s.store.ApplyVisibility(ctx, p.MessageID, p.Action); err != nil {
		log.Printf("apply visibility failed message=%s: %v", p.MessageID, err)
		return
	}

	p.SenderID = cl.userID
	echo, err := models.NewEnvelope(models.EventUpdatedMessage, p)
	if err != nil {
		return
	}
	s.hub.BroadcastRoom(p.ChatRoomID, echo)

	participants, err := s.store.RoomParticipants(ctx, p.ChatRoomID)
	if err != nil {
		return
	}
	refresh, err := models.NewEnvelope(models.EventUpdatedMessageVisibility, p)
	if err != nil {
		return
	}
	for _, participant := range participants {
		if participant == cl.userID || s.hub.InRoom(p.ChatRoomID, participant) {
			continue
		}
		s.hub.SendToUser(participant, refresh)
	}
}
