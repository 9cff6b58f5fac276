// Package bus carries transport events into the router and outbound envelopes
// back to the transports.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// Event is anything a transport publishes on the inbound side of the bus.
type Event interface {
	// Source returns the name of the transport that produced the event.
	Source() string
}

// Author identifies the sender of a message or a member joining a server.
type Author struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Mention string `json:"mention"` // transport-specific token that pings the user
	Bot     bool   `json:"bot,omitempty"`
}

// InboundMessage is a chat message received from a transport.
type InboundMessage struct {
	Channel     string    `json:"channel"` // transport name
	ServerID    string    `json:"server_id,omitempty"`
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	Author      Author    `json:"author"`
	Content     string    `json:"content"`
	Mentions    []string  `json:"mentions,omitempty"` // ids of mentioned users
	Timestamp   time.Time `json:"timestamp"`
}

func (m *InboundMessage) Source() string { return m.Channel }

// IsDirect reports whether the message was sent outside of any server.
func (m *InboundMessage) IsDirect() bool { return m.ServerID == "" }

// SessionKey returns the key of the conversation the message belongs to.
func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ServerID
}

// MentionsUser reports whether userID is among the users mentioned by the message.
func (m *InboundMessage) MentionsUser(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range m.Mentions {
		if id == userID {
			return true
		}
	}
	return false
}

// MemberJoin is published when a user joins a server the bot is in.
type MemberJoin struct {
	Channel  string `json:"channel"`
	ServerID string `json:"server_id"`
	Member   Author `json:"member"`
}

func (e *MemberJoin) Source() string { return e.Channel }

// ServerJoin is published when the bot becomes available on a server.
type ServerJoin struct {
	Channel    string `json:"channel"`
	ServerID   string `json:"server_id"`
	ServerName string `json:"server_name"`
}

func (e *ServerJoin) Source() string { return e.Channel }

// Ready is published once a transport has connected and knows its own identity.
type Ready struct {
	Channel string `json:"channel"`
	SelfID  string `json:"self_id"`
}

func (e *Ready) Source() string { return e.Channel }

// TargetKind distinguishes channel posts from direct messages.
type TargetKind string

const (
	TargetChannel TargetKind = "channel"
	TargetUser    TargetKind = "user"
)

// Target is where an envelope is delivered.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

// ChannelTarget addresses a text channel.
func ChannelTarget(id string) Target { return Target{Kind: TargetChannel, ID: id} }

// UserTarget addresses a user by direct message.
func UserTarget(id string) Target { return Target{Kind: TargetUser, ID: id} }

// Envelope is a pending outbound message.
type Envelope struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"` // transport name
	Target    Target    `json:"target"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEnvelope builds an envelope with a fresh id.
func NewEnvelope(transport string, target Target, content string) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Channel:   transport,
		Target:    target,
		Content:   content,
		CreatedAt: time.Now(),
	}
}
