package bot

import (
	"context"
	"runtime"
	"sync"
	"time"

	"tortoise-guard/internal/actions"
	"tortoise-guard/internal/antiraid"
	"tortoise-guard/internal/aoc"
	"tortoise-guard/internal/cache"
	"tortoise-guard/internal/config"
	"tortoise-guard/internal/metrics"
	"tortoise-guard/internal/storage"
	"tortoise-guard/internal/suppress"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *storage.Store
	boardCache *cache.Leaderboard
	detector   *antiraid.Detector
	pipeline   *actions.Pipeline
	aocClient  *aoc.Client
	suppressed *suppress.Set
	session    *discordgo.Session
	startedAt  time.Time
	stopCh     chan struct{}

	statusMu  sync.Mutex
	statuses  []string
	statusIdx int
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, boardCache *cache.Leaderboard, detector *antiraid.Detector, aocClient *aoc.Client, suppressed *suppress.Set, m *metrics.Metrics) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent
	// Cache recent messages so delete events can report their content.
	session.State.MaxMessageCount = 1000

	b := &Bot{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		boardCache: boardCache,
		detector:   detector,
		aocClient:  aocClient,
		suppressed: suppressed,
		session:    session,
		startedAt:  time.Now(),
		stopCh:     make(chan struct{}),
		statuses:   append([]string(nil), cfg.Presence.Statuses...),
	}

	b.pipeline = actions.New(actions.Config{
		ModLogChannelID: cfg.AntiRaid.ModLogChannelID,
		AppealURL:       cfg.AntiRaid.AppealURL,
		DeleteDays:      1,
	}, &sessionSink{session: session}, suppressed, logger, m)

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onMessageDelete)
	b.session.AddHandler(b.onMessageDeleteBulk)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.startSweeps()
	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	close(b.stopCh)
	if b.session != nil {
		_ = b.session.Close()
	}
}

type HealthSnapshot struct {
	Status         string `json:"status"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	Guilds         int    `json:"guilds"`
	TrackedMembers int    `json:"tracked_members"`
	Suppressed     int    `json:"suppressed_deletes"`
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
}

func (b *Bot) Health() HealthSnapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return HealthSnapshot{
		Status:         "ok",
		UptimeSeconds:  int64(time.Since(b.startedAt).Seconds()),
		Guilds:         len(b.session.State.Guilds),
		TrackedMembers: b.detector.TrackedMembers(),
		Suppressed:     b.suppressed.Len(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
	}
}

func (b *Bot) Ready() bool {
	return b.session.State.User != nil
}

// sessionSink adapts the discord session to the action pipeline's surface.
type sessionSink struct {
	session *discordgo.Session
}

func (s *sessionSink) SendDirectMessage(ctx context.Context, userID string, embed *discordgo.MessageEmbed) error {
	_ = ctx
	channel, err := s.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = s.session.ChannelMessageSendEmbed(channel.ID, embed)
	return err
}

func (s *sessionSink) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	_ = ctx
	return s.session.ChannelMessageDelete(channelID, messageID)
}

func (s *sessionSink) BanMember(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	_ = ctx
	return s.session.GuildBanCreateWithReason(guildID, userID, reason, deleteDays)
}

func (s *sessionSink) SendChannelMessage(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	_ = ctx
	_, err := s.session.ChannelMessageSendEmbed(channelID, embed)
	return err
}

func (s *sessionSink) GuildName(guildID string) string {
	guild, err := s.session.State.Guild(guildID)
	if err != nil {
		return ""
	}
	return guild.Name
}
