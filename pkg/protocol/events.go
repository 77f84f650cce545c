package protocol

import "time"

// Client-to-server event types.
const (
	TypeAuth              = "auth"
	TypeMessageSend       = "message:send"
	TypeMessageEdit       = "message:edit"
	TypeMessageDelete     = "message:delete"
	TypeMessageDelivered  = "message:delivered"
	TypeMessageRead       = "message:read"
	TypeConversationJoin  = "conversation:join"
	TypeConversationLeave = "conversation:leave"
	TypePresenceUpdate    = "presence:update"
	TypeHeartbeat         = "heartbeat"
)

// Server-to-client event types. TypePresenceUpdate is shared: the client
// sets its own status, the server broadcasts everyone else's.
const (
	TypeAuthSuccess           = "auth:success"
	TypeMessageNew            = "message:new"
	TypeMessageSent           = "message:sent"
	TypeMessageEdited         = "message:edited"
	TypeMessageDeleted        = "message:deleted"
	TypeMessageDeliveryStatus = "message:delivery-status"
	TypeMessageReadStatus     = "message:read-status"
	TypeMessageError          = "message:error"
	TypeParticipantAdded      = "conversation:participant-added"
	TypeParticipantRemoved    = "conversation:participant-removed"
	TypeAdminPromoted         = "conversation:admin-promoted"
	TypeConversationUpdated   = "conversation:updated"
	TypeForceDisconnect       = "force:disconnect"
)

// ReasonLastAdminLeaving accompanies an auto-promotion triggered by the
// sole admin leaving a group.
const ReasonLastAdminLeaving = "last_admin_leaving"

// Client-to-server payloads.

type AuthRequest struct {
	Token string `msgpack:"token" json:"token"`
}

type MessageSend struct {
	ConversationID string `msgpack:"conversationId" json:"conversationId"`
	Content        string `msgpack:"content" json:"content"`
	ReplyToID      string `msgpack:"replyToId,omitempty" json:"replyToId,omitempty"`
	TempID         string `msgpack:"tempId,omitempty" json:"tempId,omitempty"`
}

type MessageEdit struct {
	MessageID string `msgpack:"messageId" json:"messageId"`
	Content   string `msgpack:"content" json:"content"`
}

type MessageDelete struct {
	MessageID string `msgpack:"messageId" json:"messageId"`
}

type MessageDeliveredAck struct {
	MessageIDs []string `msgpack:"messageIds" json:"messageIds"`
}

// MessageReadAck marks either a whole conversation read up to now, or a
// specific set of messages.
type MessageReadAck struct {
	ConversationID string   `msgpack:"conversationId,omitempty" json:"conversationId,omitempty"`
	MessageIDs     []string `msgpack:"messageIds,omitempty" json:"messageIds,omitempty"`
}

type ConversationJoin struct {
	ConversationID string `msgpack:"conversationId" json:"conversationId"`
}

type ConversationLeave struct {
	ConversationID string `msgpack:"conversationId" json:"conversationId"`
}

type PresenceSet struct {
	Status string `msgpack:"status" json:"status"`
}

// Server-to-client payloads.

type AuthSuccess struct {
	UserID    string `msgpack:"userId" json:"userId"`
	SessionID string `msgpack:"sessionId" json:"sessionId"`
}

type MessageNew struct {
	ID             string    `msgpack:"id" json:"id"`
	ConversationID string    `msgpack:"conversationId" json:"conversationId"`
	SenderID       string    `msgpack:"senderId" json:"senderId"`
	Content        string    `msgpack:"content" json:"content"`
	ReplyToID      string    `msgpack:"replyToId,omitempty" json:"replyToId,omitempty"`
	CreatedAt      time.Time `msgpack:"createdAt" json:"createdAt"`
	TempID         string    `msgpack:"tempId,omitempty" json:"tempId,omitempty"`
}

type MessageSent struct {
	TempID    string    `msgpack:"tempId,omitempty" json:"tempId,omitempty"`
	MessageID string    `msgpack:"messageId" json:"messageId"`
	CreatedAt time.Time `msgpack:"createdAt" json:"createdAt"`
}

type MessageEdited struct {
	MessageID      string    `msgpack:"messageId" json:"messageId"`
	ConversationID string    `msgpack:"conversationId" json:"conversationId"`
	Content        string    `msgpack:"content" json:"content"`
	UpdatedAt      time.Time `msgpack:"updatedAt" json:"updatedAt"`
}

type MessageDeleted struct {
	MessageID      string    `msgpack:"messageId" json:"messageId"`
	ConversationID string    `msgpack:"conversationId" json:"conversationId"`
	DeletedAt      time.Time `msgpack:"deletedAt" json:"deletedAt"`
}

type MessageDeliveryStatus struct {
	MessageIDs []string `msgpack:"messageIds" json:"messageIds"`
	UserID     string   `msgpack:"userId" json:"userId"`
	Status     string   `msgpack:"status" json:"status"`
}

type MessageReadStatus struct {
	MessageIDs []string  `msgpack:"messageIds" json:"messageIds"`
	UserID     string    `msgpack:"userId" json:"userId"`
	Status     string    `msgpack:"status" json:"status"`
	Timestamp  time.Time `msgpack:"timestamp" json:"timestamp"`
}

type MessageError struct {
	TempID     string `msgpack:"tempId,omitempty" json:"tempId,omitempty"`
	Code       string `msgpack:"code" json:"code"`
	Message    string `msgpack:"message" json:"message"`
	RetryAfter int64  `msgpack:"retryAfter,omitempty" json:"retryAfter,omitempty"`
}

type PresenceUpdate struct {
	UserID   string     `msgpack:"userId" json:"userId"`
	Status   string     `msgpack:"status" json:"status"`
	LastSeen *time.Time `msgpack:"lastSeen,omitempty" json:"lastSeen,omitempty"`
}

type ParticipantAdded struct {
	ConversationID string   `msgpack:"conversationId" json:"conversationId"`
	Participants   []string `msgpack:"participants" json:"participants"`
	AddedBy        string   `msgpack:"addedBy" json:"addedBy"`
}

type ParticipantRemoved struct {
	ConversationID string `msgpack:"conversationId" json:"conversationId"`
	UserID         string `msgpack:"userId" json:"userId"`
	RemovedBy      string `msgpack:"removedBy" json:"removedBy"`
	IsSelfRemoval  bool   `msgpack:"isSelfRemoval" json:"isSelfRemoval"`
}

type AdminPromoted struct {
	ConversationID string `msgpack:"conversationId" json:"conversationId"`
	UserID         string `msgpack:"userId" json:"userId"`
	Reason         string `msgpack:"reason" json:"reason"`
}

type ConversationUpdated struct {
	ConversationID string `msgpack:"conversationId" json:"conversationId"`
	Name           string `msgpack:"name,omitempty" json:"name,omitempty"`
	AvatarURL      string `msgpack:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
}

type ForceDisconnect struct {
	Reason string `msgpack:"reason" json:"reason"`
}
