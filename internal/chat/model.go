package chat

import (
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------
// 🗄️ Database & API Models
// ---------------------------------------------

const (
	TypeChat    = "chat"
	TypeAdmin   = "admin"
	TypeDiscord = "discord" // produced by the bridge, exempt from username moderation
)

const (
	AdminUsername     = "Admin"
	AdminColor        = "#ff5555"
	DefaultColor      = "#ffffff"
	AnonymousUsername = "Anonymous"
	DefaultHistory    = 50
)

// AdminUUID marks admin-authored rows. Only the hub writes it.
var AdminUUID = uuid.Nil.String()

// Message is one persisted row of the chat log.
type Message struct {
	ID         int64     `db:"id" json:"id"`
	Username   string    `db:"username" json:"username"`
	Content    string    `db:"content" json:"content"`
	Timestamp  time.Time `db:"created_at" json:"timestamp"`
	Type       string    `db:"message_type" json:"message_type"`
	Color      string    `db:"message_color" json:"message_color"`
	AuthorUUID *string   `db:"user_uuid" json:"user_uuid"`
}

// NewMessage is what the hub hands to the log. ID and Timestamp are assigned by storage.
type NewMessage struct {
	Username   string
	Content    string
	Type       string
	Color      string
	AuthorUUID string // empty is stored as NULL
}

// Stats are the aggregate counters broadcast after every log mutation.
type Stats struct {
	TotalMessages int64 `db:"total_messages" json:"totalMessages"`
	UniquePosters int64 `db:"unique_posters" json:"uniquePosters"`
}

// ---------------------------------------------
// ⚡ Wire Frames
// ---------------------------------------------

// Server -> client frame types.
const (
	FrameHistory        = "history"
	FrameMessage        = "message"
	FrameMessageDeleted = "message_deleted"
	FrameUsernameChange = "username_changed"
	FrameClientCount    = "client_count_update"
	FrameStats          = "chat_aggregate_stats"
)

// Client -> server command types. A normal post carries no type at all.
const (
	CmdDeleteMessage  = "delete_message"
	CmdChangeUsername = "change_username"
	CmdAdminMessage   = "admin_message"
)

type historyFrame struct {
	Type string    `json:"type"`
	Data []Message `json:"data"`
}

type messageFrame struct {
	Type string  `json:"type"`
	Data Message `json:"data"`
}

type deletedFrame struct {
	Type      string `json:"type"`
	MessageID int64  `json:"messageId"`
}

type usernameFrame struct {
	Type        string `json:"type"`
	UserUUID    string `json:"userUUID"`
	NewUsername string `json:"newUsername"`
}

type countFrame struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type statsFrame struct {
	Type string `json:"type"`
	Data Stats  `json:"data"`
}

// InboundFrame is the union of every client -> server shape. Pointer fields
// record presence, which is how an untyped post is told apart from a command.
type InboundFrame struct {
	Type         *string `json:"type"`
	Content      *string `json:"content"`
	Username     *string `json:"username"`
	UserUUID     *string `json:"userUUID"`
	MessageType  string  `json:"message_type"`
	MessageColor string  `json:"message_color"`
	MessageID    *int64  `json:"messageId"`
	NewUsername  string  `json:"newUsername"`
	Credential   string  `json:"credential"`
}
