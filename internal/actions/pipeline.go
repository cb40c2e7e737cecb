// Package actions executes the remediation sequence for a raid verdict:
// suppress, notify, delete, ban, report. Steps are best-effort and isolated;
// only a failed ban halts the rest of the pipeline.
package actions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"tortoise-guard/internal/antiraid"
	"tortoise-guard/internal/metrics"
	"tortoise-guard/internal/suppress"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const BanReason = "Raid protection: multi-channel spam"

const (
	colorBanNotice  = 0xED4245
	colorModReport  = 0xE67E22
	reportEvidence  = 1024
	evidenceDisplay = 200
)

// Sink is the platform action surface the pipeline drives. Every call may
// fail with a permission or missing-resource error from the platform.
type Sink interface {
	SendDirectMessage(ctx context.Context, userID string, embed *discordgo.MessageEmbed) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	BanMember(ctx context.Context, guildID, userID, reason string, deleteDays int) error
	SendChannelMessage(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
	GuildName(guildID string) string
}

type Config struct {
	ModLogChannelID string
	AppealURL       string
	DeleteDays      int
}

type Pipeline struct {
	cfg        Config
	sink       Sink
	suppressed *suppress.Set
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func New(cfg Config, sink Sink, suppressed *suppress.Set, logger *zap.Logger, m *metrics.Metrics) *Pipeline {
	if cfg.DeleteDays <= 0 {
		cfg.DeleteDays = 1
	}
	return &Pipeline{cfg: cfg, sink: sink, suppressed: suppressed, logger: logger, metrics: m}
}

// Execute runs the remediation steps for one verdict. DM and delete failures
// are swallowed; a ban failure skips the mod report, since reporting an
// unenforced ban would be misleading.
func (p *Pipeline) Execute(ctx context.Context, verdict antiraid.Verdict) {
	for _, entry := range verdict.Entries {
		p.suppressed.Add(entry.MessageID)
	}

	if err := p.sink.SendDirectMessage(ctx, verdict.UserID, p.banNoticeEmbed(verdict)); err != nil {
		p.stepFailed("dm", verdict, err)
	}

	// Only the triggering message is deleted directly; the ban below purges
	// the rest of the member's recent messages.
	if last := len(verdict.Entries) - 1; last >= 0 {
		entry := verdict.Entries[last]
		if err := p.sink.DeleteMessage(ctx, entry.ChannelID, entry.MessageID); err != nil {
			p.stepFailed("delete", verdict, err)
		}
	}

	if err := p.sink.BanMember(ctx, verdict.GuildID, verdict.UserID, BanReason, p.cfg.DeleteDays); err != nil {
		p.stepFailed("ban", verdict, err)
		return
	}
	if p.metrics != nil {
		p.metrics.Bans.Inc()
	}
	p.logger.Info("raid ban applied",
		zap.String("guild_id", verdict.GuildID),
		zap.String("user_id", verdict.UserID),
		zap.String("reason", string(verdict.Reason)))

	if p.cfg.ModLogChannelID == "" {
		return
	}
	if err := p.sink.SendChannelMessage(ctx, p.cfg.ModLogChannelID, p.reportEmbed(verdict)); err != nil {
		p.stepFailed("report", verdict, err)
	}
}

func (p *Pipeline) stepFailed(step string, verdict antiraid.Verdict, err error) {
	if p.metrics != nil {
		p.metrics.StepFailures.WithLabelValues(step).Inc()
	}
	level := p.logger.Warn
	if IsForbidden(err) || IsNotFound(err) {
		level = p.logger.Debug
	}
	level("pipeline step skipped",
		zap.String("step", step),
		zap.String("guild_id", verdict.GuildID),
		zap.String("user_id", verdict.UserID),
		zap.Error(err))
}

func (p *Pipeline) banNoticeEmbed(verdict antiraid.Verdict) *discordgo.MessageEmbed {
	guildName := p.sink.GuildName(verdict.GuildID)
	if guildName == "" {
		guildName = "the server"
	}
	embed := &discordgo.MessageEmbed{
		Title: "You have been automatically banned",
		Description: fmt.Sprintf(
			"You were banned from **%s** due to **automated raid protection**.\n\n"+
				"Our system detected spam-like behavior across multiple channels.\n\n"+
				"**If this was a mistake**, you may appeal below.", guildName),
		Color:  colorBanNotice,
		Footer: &discordgo.MessageEmbedFooter{Text: "This action was performed automatically"},
	}
	if p.cfg.AppealURL != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Appeal",
			Value: fmt.Sprintf("[Join the appeal server](%s)", p.cfg.AppealURL),
		})
	}
	return embed
}

func (p *Pipeline) reportEmbed(verdict antiraid.Verdict) *discordgo.MessageEmbed {
	joined := "Unknown"
	if !verdict.JoinedAt.IsZero() {
		joined = fmt.Sprintf("<t:%d:R>", verdict.JoinedAt.Unix())
	}

	lines := make([]string, 0, len(verdict.Entries))
	for _, entry := range verdict.Entries {
		lines = append(lines, fmt.Sprintf("**<#%s>:** %s", entry.ChannelID, truncate(entry.Fingerprint, evidenceDisplay)))
	}

	return &discordgo.MessageEmbed{
		Title: "Raid Ban Triggered",
		Color: colorModReport,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s> (`%s`)", verdict.UserID, verdict.UserID)},
			{Name: "Joined", Value: joined},
			{Name: "Reason", Value: string(verdict.Reason)},
			{Name: "Messages", Value: truncate(strings.Join(lines, "\n"), reportEvidence)},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: BanReason},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// IsForbidden reports whether the platform rejected the call for lack of
// permission (closed DMs, missing ban/delete permission).
func IsForbidden(err error) bool {
	return restStatus(err) == http.StatusForbidden
}

// IsNotFound reports whether the target resource no longer exists.
func IsNotFound(err error) bool {
	return restStatus(err) == http.StatusNotFound
}

func restStatus(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode
	}
	return 0
}

// truncate cuts on a rune boundary so a multi-byte character is never split.
func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	for limit > 0 && !utf8.RuneStart(value[limit]) {
		limit--
	}
	return value[:limit]
}
