package bot

import (
	"context"
	"time"

	"go.uber.org/zap"
)

func (b *Bot) startSweeps() {
	go b.roleRemovalLoop()
	go b.afkExpiryLoop()
	go b.windowSweepLoop()
	go b.presenceLoop()
	if b.aocClient != nil {
		go b.aocRefreshLoop()
	}
}

// sweepInterval floors a configured minute count so a zero value from a
// hand-edited config can never feed time.NewTicker a zero period.
func sweepInterval(minutes int) time.Duration {
	if minutes <= 0 {
		minutes = 10
	}
	return time.Duration(minutes) * time.Minute
}

// roleRemovalLoop strips expired temporary welcome roles. Removals survive
// restarts because the deadline lives in Postgres, not in a timer.
func (b *Bot) roleRemovalLoop() {
	ticker := time.NewTicker(sweepInterval(b.cfg.Welcome.SweepMinutes))
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.removeDueRoles()
		}
	}
}

func (b *Bot) removeDueRoles() {
	ctx := context.Background()
	due, err := b.store.DueRoleRemovals(ctx)
	if err != nil {
		b.logger.Warn("role removal query failed", zap.Error(err))
		return
	}
	for _, removal := range due {
		err := b.session.GuildMemberRoleRemove(removal.GuildID, removal.UserID, removal.RoleID)
		if err != nil {
			b.logger.Debug("role removal failed",
				zap.String("user_id", removal.UserID), zap.Error(err))
		}
		// Drop the schedule entry either way; members who left the guild
		// would otherwise be retried forever.
		if err := b.store.DeleteRoleRemoval(ctx, removal.GuildID, removal.UserID, removal.RoleID); err != nil {
			b.logger.Warn("role schedule cleanup failed", zap.Error(err))
		}
	}
}

func (b *Bot) afkExpiryLoop() {
	ticker := time.NewTicker(sweepInterval(b.cfg.AFK.SweepMinutes))
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.expireAFK()
		}
	}
}

func (b *Bot) expireAFK() {
	ctx := context.Background()
	expired, err := b.store.ExpiredAFK(ctx, time.Now())
	if err != nil {
		b.logger.Warn("afk expiry query failed", zap.Error(err))
		return
	}
	for _, status := range expired {
		if err := b.store.RemoveAFK(ctx, status.GuildID, status.UserID); err != nil {
			b.logger.Warn("afk expiry removal failed", zap.Error(err))
		}
	}
}

func (b *Bot) windowSweepLoop() {
	ticker := time.NewTicker(sweepInterval(b.cfg.AntiRaid.SweepMinutes))
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			if removed := b.detector.Sweep(); removed > 0 {
				b.logger.Debug("swept idle activity windows", zap.Int("removed", removed))
			}
		}
	}
}

func (b *Bot) presenceLoop() {
	interval := time.Duration(b.cfg.Presence.IntervalSeconds) * time.Second
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.rotatePresence()
		}
	}
}

// aocRefreshLoop keeps the Advent of Code leaderboard cache warm. The first
// refresh runs immediately so the slash command has data shortly after boot.
func (b *Bot) aocRefreshLoop() {
	b.refreshAoC()
	ticker := time.NewTicker(sweepInterval(b.cfg.AoC.RefreshMinutes))
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.refreshAoC()
		}
	}
}

func (b *Bot) refreshAoC() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := b.aocClient.Refresh(ctx); err != nil {
		b.logger.Warn("aoc leaderboard refresh failed", zap.Error(err))
	}
}

func (b *Bot) rotatePresence() {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	if len(b.statuses) == 0 {
		return
	}
	status := b.statuses[b.statusIdx%len(b.statuses)]
	b.statusIdx = (b.statusIdx + 1) % len(b.statuses)
	if err := b.session.UpdateWatchStatus(0, status); err != nil {
		b.logger.Debug("presence update failed", zap.Error(err))
	}
}
