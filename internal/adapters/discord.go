package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"clubfines/internal/core"
	applog "clubfines/internal/log"
)

type channelSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts a short line to a channel for every ledger change.
type DiscordNotifier struct {
	sender    channelSender
	session   *discordgo.Session
	channelID string
	logger    *applog.Logger
}

func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}
	session, err := discordgo.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	n := newDiscordNotifier(session, channelID)
	n.session = session
	return n, nil
}

func newDiscordNotifier(sender channelSender, channelID string) *DiscordNotifier {
	return &DiscordNotifier{
		sender:    sender,
		channelID: channelID,
		logger:    applog.NewLogger(applog.ComponentNotify),
	}
}

func (d *DiscordNotifier) Notify(ctx context.Context, c core.Change) error {
	text := FormatChange(c)
	if text == "" {
		return nil
	}
	if _, err := d.sender.ChannelMessageSend(d.channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	d.logger.DebugContext(ctx, "Posted change",
		applog.FieldBackend, "discord",
		applog.FieldChangeOp, string(c.Op))
	return nil
}

// Close releases the session's idle HTTP connections. The notifier never
// opens a gateway connection, it only uses the REST API.
func (d *DiscordNotifier) Close() error {
	if d.session != nil && d.session.Client != nil {
		d.session.Client.CloseIdleConnections()
	}
	return nil
}

// FormatChange renders c as a chat line. Changes with nothing to say
// render as "".
func FormatChange(c core.Change) string {
	switch c.Op {
	case core.OpMemberAdded:
		return fmt.Sprintf("👋 **%s** joined the roster", c.Member)
	case core.OpFineRecorded:
		return fmt.Sprintf("💸 **%s** fined %s (#%d), balance %s",
			c.Member, core.FormatAmount(c.Amount), c.EntryID, core.FormatAmount(c.Balance))
	case core.OpEntryDeleted:
		return fmt.Sprintf("↩️ Fine #%d for **%s** removed, %s refunded, balance %s",
			c.EntryID, c.Member, core.FormatAmount(c.Amount), core.FormatAmount(c.Balance))
	case core.OpEventsReplaced:
		return "📋 Event catalog updated"
	case core.OpRulesReplaced:
		return "📋 Fine rules updated"
	default:
		return ""
	}
}
