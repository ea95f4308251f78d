package hub

import (
	"strconv"
	"time"

	"devsocial/pkg/envelope"
)

// Client actions.
const (
	ActionJoinChat          = "join_chat"
	ActionSendMessage       = "send_message"
	ActionTypingStart       = "typing_start"
	ActionTypingStop        = "typing_stop"
	ActionJoinNotifications = "join_notifications"
	ActionJoinProject       = "join_project"
	ActionProjectUpdate     = "project_update"
	ActionPing              = "ping"
)

// Server events.
const (
	EventNewMessage      = "new_message"
	EventUserTyping      = "user_typing"
	EventNewNotification = "new_notification"
	EventProjectUpdated  = "project_updated"
	EventPong            = "pong"
)

// Event is one server-to-client event addressed to a room.
type Event struct {
	Kind    string
	Payload interface{}
	Sender  *envelope.Sender
	SentAt  time.Time
}

// Socket is the subset of a websocket connection the hub drives.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

func PersonalRoom(accountID int64) string {
	return "notifications_" + strconv.FormatInt(accountID, 10)
}

func ChatRoom(chatID string) string {
	return "chat_" + chatID
}

func ProjectRoom(projectID string) string {
	return "project_" + projectID
}

type typingPayload struct {
	ChatID   string           `json:"chatId"`
	User     *envelope.Sender `json:"user"`
	IsTyping bool             `json:"isTyping"`
}

type joinResult struct {
	Room string `json:"room"`
}

type publishResult struct {
	Room      string `json:"room"`
	Delivered int    `json:"delivered"`
}
