package models

import (
	"fmt"
	"strings"
	"time"
)

type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

const (
	// MaxGroupNameLength bounds group names; synthesized names are
	// truncated to fit.
	MaxGroupNameLength = 100

	// MinGroupParticipants is the minimum member count at group creation,
	// creator included.
	MinGroupParticipants = 3

	// MaxParticipantBatch bounds a single add-participants request.
	MaxParticipantBatch = 10
)

// Conversation is a direct (exactly 2 participants) or group (>=3 at
// creation) message channel. UpdatedAt is bumped on every new message.
type Conversation struct {
	ID        string           `json:"id"`
	Type      ConversationType `json:"type"`
	Name      string           `json:"name,omitempty"`
	AvatarURL string           `json:"avatar_url,omitempty"`
	CreatedBy string           `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func NewDirectConversation(id, createdBy string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        id,
		Type:      ConversationDirect,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewGroupConversation(id, name, createdBy string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        id,
		Type:      ConversationGroup,
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Conversation) IsGroup() bool {
	return c.Type == ConversationGroup
}

// SynthesizeGroupName builds a default group name from member usernames:
// up to three are listed, further members are summarized as "and N others".
func SynthesizeGroupName(usernames []string) string {
	var name string
	switch n := len(usernames); {
	case n == 0:
		return ""
	case n == 1:
		name = usernames[0]
	case n == 2:
		name = usernames[0] + " and " + usernames[1]
	case n == 3:
		name = fmt.Sprintf("%s, %s, and %s", usernames[0], usernames[1], usernames[2])
	case n == 4:
		name = fmt.Sprintf("%s, %s, and 1 other", usernames[0], usernames[1])
	default:
		name = fmt.Sprintf("%s, %s, and %d others", usernames[0], usernames[1], n-2)
	}

	if len(name) > MaxGroupNameLength {
		name = strings.TrimSpace(name[:MaxGroupNameLength-3]) + "..."
	}
	return name
}
