package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tortoise-guard/internal/aoc"
	"tortoise-guard/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var modPermission int64 = discordgo.PermissionBanMembers

func (b *Bot) commandDefinitions() []*discordgo.ApplicationCommand {
	minAmount := float64(1)
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "points",
			Description: "Show a member's community points.",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Member to look up (defaults to you)."},
			},
		},
		{
			Name:        "leaderboard",
			Description: "Show the community points leaderboard.",
		},
		{
			Name:                     "addpoints",
			Description:              "Credit community points to a member.",
			DefaultMemberPermissions: &modPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Member to credit.", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Points to add.", Required: true, MinValue: &minAmount},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Why the points were awarded."},
			},
		},
		{
			Name:                     "rmpoints",
			Description:              "Debit community points from a member.",
			DefaultMemberPermissions: &modPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Member to debit.", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Points to remove.", Required: true, MinValue: &minAmount},
			},
		},
		{
			Name:                     "ban",
			Description:              "Ban a member, subject to the rolling per-moderator cap.",
			DefaultMemberPermissions: &modPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Member to ban.", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason recorded in the audit log."},
			},
		},
		{
			Name:        "setafk",
			Description: "Mark yourself AFK for a duration.",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "hours", Description: "Hours to stay AFK."},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "days", Description: "Days to stay AFK."},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Shown to members who mention you."},
			},
		},
		{
			Name:                     "status",
			Description:              "Manage the rotating presence statuses.",
			DefaultMemberPermissions: &modPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "add", Description: "Add a status to the rotation.",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "text", Description: "Status text.", Required: true},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "Remove a status from the rotation.",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "text", Description: "Status text to remove.", Required: true},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "List the current rotation."},
			},
		},
	}
	if b.aocClient != nil {
		commands = append(commands,
			&discordgo.ApplicationCommand{
				Name:        "aoc_invite",
				Description: "Show the invite code for the community Advent of Code leaderboard.",
			},
			&discordgo.ApplicationCommand{
				Name:        "aoc_leaderboard",
				Description: "Show the community Advent of Code leaderboard (cached).",
			},
			&discordgo.ApplicationCommand{
				Name:        "aoc_countdown",
				Description: "Time until the next Advent of Code puzzle unlocks.",
			},
		)
	}
	return commands
}

func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	for _, cmd := range b.commandDefinitions() {
		if _, err := b.session.ApplicationCommandCreate(appID, b.cfg.HomeGuildID, cmd); err != nil {
			return fmt.Errorf("register %s: %w", cmd.Name, err)
		}
	}
	b.logger.Info("slash commands registered", zap.String("guild_id", b.cfg.HomeGuildID))
	return nil
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := interaction.ApplicationCommandData()
	ctx := context.Background()

	switch data.Name {
	case "points":
		b.handlePoints(ctx, interaction, data)
	case "leaderboard":
		b.handleLeaderboard(ctx, interaction)
	case "addpoints":
		b.handleAddPoints(ctx, interaction, data)
	case "rmpoints":
		b.handleRemovePoints(ctx, interaction, data)
	case "ban":
		b.handleBan(ctx, interaction, data)
	case "setafk":
		b.handleSetAFK(ctx, interaction, data)
	case "status":
		b.handleStatus(interaction, data)
	case "aoc_invite":
		b.handleAoCInvite(interaction)
	case "aoc_leaderboard":
		b.handleAoCLeaderboard(interaction)
	case "aoc_countdown":
		b.handleAoCCountdown(interaction)
	}
}

func (b *Bot) handlePoints(ctx context.Context, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	target := interactionUser(interaction)
	if user := optionUser(b.session, data.Options, "member"); user != nil {
		target = user
	}
	if target == nil {
		b.respondText(interaction, "Could not resolve the member.", true)
		return
	}

	total, err := b.store.GetPoints(ctx, interaction.GuildID, target.ID)
	if err != nil {
		b.logger.Warn("points lookup failed", zap.Error(err))
		b.respondText(interaction, "Points are unavailable right now.", true)
		return
	}
	b.respondText(interaction, fmt.Sprintf("<@%s> has **%d** points.", target.ID, total), false)
}

func (b *Bot) handleLeaderboard(ctx context.Context, interaction *discordgo.InteractionCreate) {
	entries, cached := b.cachedLeaderboard(ctx, interaction.GuildID)
	if !cached {
		var err error
		entries, err = b.store.Leaderboard(ctx, interaction.GuildID, b.cfg.Points.MinPoints, b.cfg.Points.LeaderboardLimit)
		if err != nil {
			b.logger.Warn("leaderboard query failed", zap.Error(err))
			b.respondText(interaction, "The leaderboard is unavailable right now.", true)
			return
		}
		if b.boardCache != nil {
			b.boardCache.Set(ctx, interaction.GuildID, entries)
		}
	}

	if len(entries) == 0 {
		b.respondText(interaction, "Nobody has earned points yet.", false)
		return
	}

	var lines strings.Builder
	for i, entry := range entries {
		fmt.Fprintf(&lines, "**%d.** <@%s> — %d points\n", i+1, entry.UserID, entry.Points)
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Points Leaderboard",
		Description: lines.String(),
		Color:       0xFEE75C,
	}
	b.respondEmbed(interaction, embed, false)
}

func (b *Bot) handleAddPoints(ctx context.Context, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	target := optionUser(b.session, data.Options, "member")
	amount := int(optionInt(data.Options, "amount"))
	if target == nil || amount <= 0 {
		b.respondText(interaction, "Member and a positive amount are required.", true)
		return
	}

	total, err := b.store.AddPoints(ctx, interaction.GuildID, target.ID, amount)
	if err != nil {
		b.logger.Warn("points credit failed", zap.Error(err))
		b.respondText(interaction, "Could not update points.", true)
		return
	}
	b.invalidateLeaderboard(ctx, interaction.GuildID)

	reason := optionString(data.Options, "reason")
	response := fmt.Sprintf("Added **%d** points to <@%s>. New total: **%d**.", amount, target.ID, total)
	if reason != "" {
		response += " Reason: " + reason
	}
	b.respondText(interaction, response, false)
	b.sendPointsDM(target.ID, amount, total, reason)
}

func (b *Bot) sendPointsDM(userID string, amount, total int, reason string) {
	description := fmt.Sprintf("You earned **%d** points! Your total is now **%d**.", amount, total)
	if reason != "" {
		description += "\n**Reason:** " + reason
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Points awarded",
		Description: description,
		Color:       0xFEE75C,
	}
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return
	}
	_, _ = b.session.ChannelMessageSendEmbed(channel.ID, embed)
}

func (b *Bot) handleRemovePoints(ctx context.Context, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	target := optionUser(b.session, data.Options, "member")
	amount := int(optionInt(data.Options, "amount"))
	if target == nil || amount <= 0 {
		b.respondText(interaction, "Member and a positive amount are required.", true)
		return
	}

	total, err := b.store.RemovePoints(ctx, interaction.GuildID, target.ID, amount)
	if err != nil {
		b.logger.Warn("points debit failed", zap.Error(err))
		b.respondText(interaction, "Could not update points.", true)
		return
	}
	b.invalidateLeaderboard(ctx, interaction.GuildID)
	b.respondText(interaction, fmt.Sprintf("Removed **%d** points from <@%s>. New total: **%d**.", amount, target.ID, total), false)
}

func (b *Bot) handleBan(ctx context.Context, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	invoker := interactionUser(interaction)
	target := optionUser(b.session, data.Options, "member")
	if invoker == nil || target == nil {
		b.respondText(interaction, "Could not resolve the member.", true)
		return
	}
	if target.ID == invoker.ID {
		b.respondText(interaction, "You cannot ban yourself.", true)
		return
	}
	if b.session.State.User != nil && target.ID == b.session.State.User.ID {
		b.respondText(interaction, "Nice try.", true)
		return
	}
	if guild, err := b.session.State.Guild(interaction.GuildID); err == nil && target.ID == guild.OwnerID {
		b.respondText(interaction, "The server owner cannot be banned.", true)
		return
	}
	if b.targetOutranks(interaction, target.ID) {
		b.respondText(interaction, "You cannot ban a member with an equal or higher role.", true)
		return
	}

	window := time.Duration(b.cfg.BanLimit.WindowHours) * time.Hour
	allowed, err := b.store.TryRecordBan(ctx, invoker.ID, b.cfg.BanLimit.MaxBans, window)
	if err != nil {
		b.logger.Warn("ban limit check failed", zap.Error(err))
		b.respondText(interaction, "Could not verify your ban allowance.", true)
		return
	}
	if !allowed {
		b.respondText(interaction, fmt.Sprintf(
			"You have reached the limit of %d bans per %d hours.",
			b.cfg.BanLimit.MaxBans, b.cfg.BanLimit.WindowHours), true)
		return
	}

	reason := optionString(data.Options, "reason")
	if reason == "" {
		reason = "No reason provided"
	}

	// Notify before banning; the DM channel closes once they are gone.
	guildName := ""
	if guild, err := b.session.State.Guild(interaction.GuildID); err == nil {
		guildName = guild.Name
	}
	b.sendBanDM(target.ID, guildName, reason)

	if err := b.session.GuildBanCreateWithReason(interaction.GuildID, target.ID, reason, 0); err != nil {
		b.logger.Warn("ban failed",
			zap.String("target_id", target.ID), zap.Error(err))
		b.respondText(interaction, "The ban failed. Check my role position and permissions.", true)
		return
	}

	b.logger.Info("member banned by moderator",
		zap.String("guild_id", interaction.GuildID),
		zap.String("moderator_id", invoker.ID),
		zap.String("target_id", target.ID),
		zap.String("reason", reason))
	b.respondText(interaction, fmt.Sprintf("Banned <@%s>. Reason: %s", target.ID, reason), false)
}

func (b *Bot) targetOutranks(interaction *discordgo.InteractionCreate, targetID string) bool {
	if interaction.Member == nil {
		return false
	}
	guild, err := b.session.State.Guild(interaction.GuildID)
	if err != nil {
		return false
	}
	targetMember, err := b.session.State.Member(interaction.GuildID, targetID)
	if err != nil {
		targetMember, err = b.session.GuildMember(interaction.GuildID, targetID)
	}
	if err != nil || targetMember == nil {
		return false
	}
	return highestRolePosition(guild, targetMember.Roles) >= highestRolePosition(guild, interaction.Member.Roles)
}

func highestRolePosition(guild *discordgo.Guild, roleIDs []string) int {
	position := -1
	for _, roleID := range roleIDs {
		for _, role := range guild.Roles {
			if role.ID == roleID && role.Position > position {
				position = role.Position
			}
		}
	}
	return position
}

func (b *Bot) sendBanDM(userID, guildName, reason string) {
	if guildName == "" {
		guildName = "the server"
	}
	embed := &discordgo.MessageEmbed{
		Title:       "You have been banned",
		Description: fmt.Sprintf("You were banned from **%s**.\n**Reason:** %s", guildName, reason),
		Color:       0xED4245,
	}
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		return
	}
	_, _ = b.session.ChannelMessageSendEmbed(channel.ID, embed)
}

func (b *Bot) handleSetAFK(ctx context.Context, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	invoker := interactionUser(interaction)
	if invoker == nil {
		b.respondText(interaction, "Could not resolve your account.", true)
		return
	}

	hours := optionInt(data.Options, "hours")
	days := optionInt(data.Options, "days")
	duration := time.Duration(hours)*time.Hour + time.Duration(days)*24*time.Hour
	if duration <= 0 {
		duration = 24 * time.Hour
	}
	until := time.Now().Add(duration)
	reason := optionString(data.Options, "reason")

	if err := b.store.SetAFK(ctx, interaction.GuildID, invoker.ID, until, reason); err != nil {
		b.logger.Warn("afk set failed", zap.Error(err))
		b.respondText(interaction, "Could not set your AFK status.", true)
		return
	}
	b.respondText(interaction, fmt.Sprintf("You are AFK until <t:%d:R>.", until.Unix()), true)
}

// handleStatus mutates the rotation under the lock and responds after
// releasing it, so a slow interaction response cannot stall the presence
// ticker.
func (b *Bot) handleStatus(interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]

	var response string
	switch sub.Name {
	case "add":
		response = b.addStatus(optionString(sub.Options, "text"))
	case "remove":
		response = b.removeStatus(optionString(sub.Options, "text"))
	case "list":
		response = b.listStatuses()
	default:
		return
	}
	b.respondText(interaction, response, true)
}

func (b *Bot) addStatus(text string) string {
	if text == "" {
		return "Status text is required."
	}
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	b.statuses = append(b.statuses, text)
	return fmt.Sprintf("Added status: %s", text)
}

func (b *Bot) removeStatus(text string) string {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	for i, status := range b.statuses {
		if status == text {
			b.statuses = append(b.statuses[:i], b.statuses[i+1:]...)
			if b.statusIdx >= len(b.statuses) {
				b.statusIdx = 0
			}
			return fmt.Sprintf("Removed status: %s", text)
		}
	}
	return "No such status in the rotation."
}

func (b *Bot) listStatuses() string {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	if len(b.statuses) == 0 {
		return "The rotation is empty."
	}
	return "Rotation:\n• " + strings.Join(b.statuses, "\n• ")
}

func (b *Bot) handleAoCInvite(interaction *discordgo.InteractionCreate) {
	embed := &discordgo.MessageEmbed{
		Title: "Advent of Code",
		Description: fmt.Sprintf(
			"Use this code to join the community AoC leaderboard: **%s**\n\n"+
				"Enter it at https://adventofcode.com/%d/leaderboard/private",
			b.cfg.AoC.InviteCode, b.cfg.AoC.Year),
		Color: 0x57F287,
	}
	b.respondEmbed(interaction, embed, false)
}

func (b *Bot) handleAoCLeaderboard(interaction *discordgo.InteractionCreate) {
	board, ok := b.aocClient.Cached()
	if !ok {
		b.respondText(interaction, "The leaderboard cache is not loaded yet, try again in a few seconds.", true)
		return
	}
	embed := &discordgo.MessageEmbed{
		Title: "Advent of Code leaderboard",
		Description: fmt.Sprintf("%s\n\nRefreshed every %d minutes.",
			aoc.FormatTop(board, 10), b.cfg.AoC.RefreshMinutes),
		Color: 0x57F287,
	}
	b.respondEmbed(interaction, embed, false)
}

func (b *Bot) handleAoCCountdown(interaction *discordgo.InteractionCreate) {
	day, remaining, active := aoc.Countdown(time.Now())
	if !active {
		b.respondText(interaction, "Advent of Code is over for this year!", true)
		return
	}
	b.respondText(interaction, fmt.Sprintf("Day %d ends in %s.", day, remaining.Round(time.Minute)), false)
}

func (b *Bot) cachedLeaderboard(ctx context.Context, guildID string) ([]storage.LeaderboardEntry, bool) {
	if b.boardCache == nil {
		return nil, false
	}
	return b.boardCache.Get(ctx, guildID)
}

func (b *Bot) invalidateLeaderboard(ctx context.Context, guildID string) {
	if b.boardCache != nil {
		b.boardCache.Invalidate(ctx, guildID)
	}
}

func (b *Bot) respondText(interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := b.session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Debug("interaction response failed", zap.Error(err))
	}
}

func (b *Bot) respondEmbed(interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := b.session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Debug("interaction response failed", zap.Error(err))
	}
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func optionUser(session *discordgo.Session, options []*discordgo.ApplicationCommandInteractionDataOption, name string) *discordgo.User {
	for _, opt := range options {
		if opt.Name == name {
			return opt.UserValue(session)
		}
	}
	return nil
}

func optionInt(options []*discordgo.ApplicationCommandInteractionDataOption, name string) int64 {
	for _, opt := range options {
		if opt.Name == name {
			return opt.IntValue()
		}
	}
	return 0
}

func optionString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range options {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}
