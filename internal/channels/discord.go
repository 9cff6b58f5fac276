package channels

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/dayuer/cacophony-go/internal/bus"
)

const (
	DiscordName = "discord"

	// discordMaxMessage is the longest message Discord accepts, in characters.
	discordMaxMessage = 2000
)

var errNotConnected = errors.New("not connected")

// DiscordChannel connects the bot to Discord through the gateway.
type DiscordChannel struct {
	BaseChannel
	Token    string
	Presence string

	mu      sync.Mutex
	session *discordgo.Session
	stop    context.CancelFunc
}

// NewDiscordChannel creates a DiscordChannel. presence is shown as the bot's
// game status once connected.
func NewDiscordChannel(token, presence string, msgBus *bus.MessageBus, log *zap.Logger) *DiscordChannel {
	return &DiscordChannel{
		BaseChannel: newBase(DiscordName, msgBus, log),
		Token:       token,
		Presence:    presence,
	}
}

// Start opens the gateway connection and blocks until ctx is cancelled.
func (d *DiscordChannel) Start(ctx context.Context) error {
	if d.Token == "" {
		return fmt.Errorf("discord token not configured")
	}
	s, err := discordgo.New("Bot " + d.Token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMembers |
		discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	s.AddHandler(d.onReady)
	s.AddHandler(d.onGuildCreate)
	s.AddHandler(d.onMessageCreate)
	s.AddHandler(d.onGuildMemberAdd)

	if err := s.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.session = s
	d.stop = cancel
	d.mu.Unlock()
	d.running.Store(true)
	d.log.Info("discord connected")

	<-ctx.Done()

	d.running.Store(false)
	d.mu.Lock()
	d.session = nil
	d.mu.Unlock()
	return s.Close()
}

// Stop disconnects from Discord.
func (d *DiscordChannel) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		d.stop()
	}
	return nil
}

// Send posts env in a text channel, or opens a DM channel for user targets.
func (d *DiscordChannel) Send(ctx context.Context, env bus.Envelope) error {
	d.mu.Lock()
	s := d.session
	d.mu.Unlock()
	if s == nil {
		return fmt.Errorf("discord: %w", errNotConnected)
	}

	channelID := env.Target.ID
	if env.Target.Kind == bus.TargetUser {
		dm, err := s.UserChannelCreate(env.Target.ID, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("discord dm channel for %s: %w", env.Target.ID, err)
		}
		channelID = dm.ID
	}

	for _, chunk := range SplitMessage(env.Content, discordMaxMessage) {
		if _, err := s.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord send to %s: %w", channelID, err)
		}
	}
	return nil
}

func (d *DiscordChannel) onReady(s *discordgo.Session, r *discordgo.Ready) {
	d.SetSelfID(r.User.ID)
	if d.Presence != "" {
		if err := s.UpdateGameStatus(0, d.Presence); err != nil {
			d.log.Warn("setting presence", zap.Error(err))
		}
	}
	d.log.Info("discord ready", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
	d.Publish(&bus.Ready{Channel: DiscordName, SelfID: r.User.ID})
}

func (d *DiscordChannel) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	d.Publish(&bus.ServerJoin{Channel: DiscordName, ServerID: g.ID, ServerName: g.Name})
}

func (d *DiscordChannel) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil {
		return
	}
	var channelName string
	if ch, err := s.State.Channel(m.ChannelID); err == nil {
		channelName = ch.Name
	}
	d.HandleMessage(convertDiscordMessage(m.Message, channelName))
}

func (d *DiscordChannel) onGuildMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil || m.User.Bot {
		return
	}
	d.Publish(&bus.MemberJoin{
		Channel:  DiscordName,
		ServerID: m.GuildID,
		Member:   discordAuthor(m.User, m.Member),
	})
}

func discordAuthor(u *discordgo.User, member *discordgo.Member) bus.Author {
	name := u.Username
	if u.GlobalName != "" {
		name = u.GlobalName
	}
	if member != nil && member.Nick != "" {
		name = member.Nick
	}
	return bus.Author{ID: u.ID, Name: name, Mention: u.Mention(), Bot: u.Bot}
}

func convertDiscordMessage(m *discordgo.Message, channelName string) *bus.InboundMessage {
	mentions := make([]string, 0, len(m.Mentions))
	for _, u := range m.Mentions {
		mentions = append(mentions, u.ID)
	}
	return &bus.InboundMessage{
		Channel:     DiscordName,
		ServerID:    m.GuildID,
		ChannelID:   m.ChannelID,
		ChannelName: channelName,
		Author:      discordAuthor(m.Author, m.Member),
		Content:     m.Content,
		Mentions:    mentions,
		Timestamp:   m.Timestamp,
	}
}

// SplitMessage cuts content into pieces of at most limit characters,
// preferring to break on newlines.
func SplitMessage(content string, limit int) []string {
	if utf8.RuneCountInString(content) <= limit {
		return []string{content}
	}
	var out []string
	for utf8.RuneCountInString(content) > limit {
		cut := byteOffset(content, limit)
		if nl := strings.LastIndexByte(content[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		out = append(out, content[:cut])
		content = content[cut:]
	}
	if content != "" {
		out = append(out, content)
	}
	return out
}

// byteOffset returns the byte index of the n-th rune of s.
func byteOffset(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}
