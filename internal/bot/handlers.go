package bot

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"tortoise-guard/internal/antiraid"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onReady(session *discordgo.Session, ready *discordgo.Ready) {
	b.logger.Info("gateway session ready",
		zap.String("user", ready.User.Username),
		zap.Int("guilds", len(ready.Guilds)))
	b.rotatePresence()
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}
	if session.State.User != nil && msg.Author.ID == session.State.User.ID {
		return
	}

	ctx := context.Background()
	b.handleAFKReturn(ctx, msg)
	b.notifyAFKMentions(ctx, msg)

	sig := b.buildSignal(msg)
	if verdict, ok := b.detector.Observe(sig); ok {
		b.pipeline.Execute(ctx, verdict)
	}
}

// buildSignal resolves the member-dependent inputs the detector needs. A
// failed permission lookup is treated as no permission; false negatives on
// moderators are caught by the trust gate tests, false positives would let
// raiders through.
func (b *Bot) buildSignal(msg *discordgo.MessageCreate) antiraid.Signal {
	sig := antiraid.Signal{
		GuildID:          msg.GuildID,
		ChannelID:        msg.ChannelID,
		MessageID:        msg.ID,
		UserID:           msg.Author.ID,
		Fingerprint:      antiraid.Fingerprint(msg.Message),
		MentionsEveryone: msg.MentionEveryone,
	}

	perms, err := b.session.State.UserChannelPermissions(msg.Author.ID, msg.ChannelID)
	if err == nil && perms&discordgo.PermissionManageMessages != 0 {
		sig.HasModPermission = true
	}

	if msg.Member != nil {
		sig.JoinedAt = msg.Member.JoinedAt
		for _, roleID := range msg.Member.Roles {
			if roleID == b.cfg.AntiRaid.UntrustedRoleID {
				sig.HasUntrustedRole = true
				break
			}
		}
	}

	return sig
}

func (b *Bot) handleAFKReturn(ctx context.Context, msg *discordgo.MessageCreate) {
	_, found, err := b.store.GetAFK(ctx, msg.GuildID, msg.Author.ID)
	if err != nil {
		b.logger.Warn("afk lookup failed", zap.Error(err))
		return
	}
	if !found {
		return
	}
	if err := b.store.RemoveAFK(ctx, msg.GuildID, msg.Author.ID); err != nil {
		b.logger.Warn("afk removal failed", zap.Error(err))
		return
	}
	b.detector.ClearMember(msg.GuildID, msg.Author.ID)
	content := fmt.Sprintf("Welcome back <@%s>, your AFK status has been removed.", msg.Author.ID)
	if _, err := b.session.ChannelMessageSend(msg.ChannelID, content); err != nil {
		b.logger.Debug("afk return notice failed", zap.Error(err))
	}
}

func (b *Bot) notifyAFKMentions(ctx context.Context, msg *discordgo.MessageCreate) {
	for _, mentioned := range msg.Mentions {
		if mentioned.Bot || mentioned.ID == msg.Author.ID {
			continue
		}
		status, found, err := b.store.GetAFK(ctx, msg.GuildID, mentioned.ID)
		if err != nil || !found {
			continue
		}
		content := fmt.Sprintf("<@%s> is AFK until <t:%d:R>.", mentioned.ID, status.Until.Unix())
		if status.Reason != "" {
			content += " Reason: " + status.Reason
		}
		if _, err := b.session.ChannelMessageSend(msg.ChannelID, content); err != nil {
			b.logger.Debug("afk mention notice failed", zap.Error(err))
		}
	}
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.User == nil || event.User.Bot {
		return
	}
	if b.cfg.HomeGuildID != "" && event.GuildID != b.cfg.HomeGuildID {
		return
	}

	ctx := context.Background()

	if b.cfg.Welcome.ChannelID != "" {
		content := fmt.Sprintf("Welcome <@%s> to the server!", event.User.ID)
		if _, err := session.ChannelMessageSend(b.cfg.Welcome.ChannelID, content); err != nil {
			b.logger.Debug("welcome channel message failed", zap.Error(err))
		}
	}

	guildName := ""
	if guild, err := session.State.Guild(event.GuildID); err == nil {
		guildName = guild.Name
	}
	if err := b.sendWelcomeDM(event.User.ID, guildName); err != nil {
		b.logger.Debug("welcome dm failed",
			zap.String("user_id", event.User.ID), zap.Error(err))
	}

	if b.cfg.Welcome.RoleID != "" {
		if err := session.GuildMemberRoleAdd(event.GuildID, event.User.ID, b.cfg.Welcome.RoleID); err != nil {
			b.logger.Warn("welcome role grant failed",
				zap.String("user_id", event.User.ID), zap.Error(err))
			return
		}
		removeAt := time.Now().Add(time.Duration(b.cfg.Welcome.RoleDays) * 24 * time.Hour)
		if err := b.store.ScheduleRoleRemoval(ctx, event.GuildID, event.User.ID, b.cfg.Welcome.RoleID, removeAt); err != nil {
			b.logger.Warn("welcome role schedule failed", zap.Error(err))
		}
	}
}

func (b *Bot) sendWelcomeDM(userID, guildName string) error {
	if guildName == "" {
		guildName = "the server"
	}
	embed := &discordgo.MessageEmbed{
		Title: "Welcome!",
		Description: fmt.Sprintf(
			"Welcome to **%s**! Introduce yourself in the community channels and check the rules before posting.",
			guildName),
		Color: 0x57F287,
	}
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = b.session.ChannelMessageSendEmbed(channel.ID, embed)
	return err
}

// onMessageDelete logs manual deletions to the mod channel. Deletions the
// action pipeline performed itself are consumed from the suppression set
// instead, so raid cleanup does not spam the log.
func (b *Bot) onMessageDelete(session *discordgo.Session, event *discordgo.MessageDelete) {
	if event.GuildID == "" || b.cfg.AntiRaid.ModLogChannelID == "" {
		return
	}
	if event.ChannelID == b.cfg.AntiRaid.ModLogChannelID {
		return
	}
	if b.suppressed.Discard(event.ID) {
		return
	}

	author := "Unknown"
	content := "*Message content unavailable.*"
	if event.BeforeDelete != nil {
		if event.BeforeDelete.Author != nil {
			if event.BeforeDelete.Author.Bot {
				return
			}
			author = fmt.Sprintf("<@%s> (`%s`)", event.BeforeDelete.Author.ID, event.BeforeDelete.Author.ID)
		}
		content = antiraid.Fingerprint(event.BeforeDelete)
	}

	embed := &discordgo.MessageEmbed{
		Title: "Message Deleted",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Author", Value: author, Inline: true},
			{Name: "Channel", Value: fmt.Sprintf("<#%s>", event.ChannelID), Inline: true},
			{Name: "Content", Value: clampField(content)},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := session.ChannelMessageSendEmbed(b.cfg.AntiRaid.ModLogChannelID, embed); err != nil {
		b.logger.Debug("deletion log failed", zap.Error(err))
	}
}

func (b *Bot) onMessageDeleteBulk(session *discordgo.Session, event *discordgo.MessageDeleteBulk) {
	if event.GuildID == "" || b.cfg.AntiRaid.ModLogChannelID == "" {
		return
	}

	remaining := 0
	var lines []string
	for _, id := range event.Messages {
		if b.suppressed.Discard(id) {
			continue
		}
		remaining++
		if msg, err := session.State.Message(event.ChannelID, id); err == nil && msg.Author != nil {
			lines = append(lines, fmt.Sprintf("**%s**: %s", msg.Author.Username, antiraid.Fingerprint(msg)))
		}
	}
	if remaining == 0 {
		return
	}

	title := fmt.Sprintf("Bulk Deletion (%d messages)", remaining)
	chunks := chunkLines(lines, 3500)
	if len(chunks) == 0 {
		chunks = []string{fmt.Sprintf("%d messages deleted in <#%s>, contents not cached.", remaining, event.ChannelID)}
	}
	for _, chunk := range chunks {
		embed := &discordgo.MessageEmbed{
			Title:       title,
			Description: chunk,
			Color:       0x5865F2,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}
		if _, err := session.ChannelMessageSendEmbed(b.cfg.AntiRaid.ModLogChannelID, embed); err != nil {
			b.logger.Debug("bulk deletion log failed", zap.Error(err))
		}
	}
}

// chunkLines packs lines into description-sized pieces, splitting only on
// line boundaries.
func chunkLines(lines []string, limit int) []string {
	var chunks []string
	var current strings.Builder
	for _, line := range lines {
		if current.Len() > 0 && current.Len()+len(line)+1 > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func clampField(value string) string {
	const limit = 1024
	if len(value) <= limit {
		return value
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut] + "..."
}
