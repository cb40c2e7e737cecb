// Package antiraid implements the streaming multi-channel spam detector:
// a per-member sliding window of message fingerprints, a trust gate deciding
// who is scrutinized, and a classifier producing raid verdicts.
package antiraid

import (
	"time"

	"tortoise-guard/internal/metrics"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

const mentionEveryoneFingerprint = "[Mentioned @everyone]"

type Detector struct {
	policy        Policy
	baitChannelID string
	windows       *windowStore
	clock         Clock
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

func New(policy Policy, baitChannelID string, logger *zap.Logger, m *metrics.Metrics) *Detector {
	return &Detector{
		policy:        policy,
		baitChannelID: baitChannelID,
		windows:       newWindowStore(policy.MaxLogSize),
		clock:         realClock{},
		logger:        logger,
		metrics:       m,
	}
}

func (d *Detector) WithClock(clock Clock) {
	d.clock = clock
}

// Observe runs one message through gate, window and classifier. It returns a
// verdict when the member crossed the raid threshold on this message; the
// member's window is already cleared by then. Observe performs no network
// I/O and is safe to call from concurrent event handlers.
func (d *Detector) Observe(sig Signal) (Verdict, bool) {
	now := d.clock.Now()
	d.countObserved()

	// Moderation-permission holders are never classified, not even by the
	// broadcast-mention or bait-channel overrides.
	if sig.HasModPermission {
		d.countExempt()
		return Verdict{}, false
	}

	if sig.MentionsEveryone {
		entry := Entry{At: now, ChannelID: sig.ChannelID, Fingerprint: mentionEveryoneFingerprint, MessageID: sig.MessageID}
		return d.verdict(sig, ReasonMentionEveryone, []Entry{entry}), true
	}

	if d.baitChannelID != "" && sig.ChannelID == d.baitChannelID {
		entry := Entry{At: now, ChannelID: sig.ChannelID, Fingerprint: sig.Fingerprint, MessageID: sig.MessageID}
		return d.verdict(sig, ReasonBaitChannel, []Entry{entry}), true
	}

	if d.policy.exempt(sig, now) {
		d.countExempt()
		return Verdict{}, false
	}

	entry := Entry{At: now, ChannelID: sig.ChannelID, Fingerprint: sig.Fingerprint, MessageID: sig.MessageID}
	snapshot := d.windows.append(sig.GuildID, sig.UserID, entry, now, d.policy.Window)

	reason, ok := d.policy.classify(snapshot)
	if !ok {
		return Verdict{}, false
	}

	d.logger.Info("raid threshold crossed",
		zap.String("guild_id", sig.GuildID),
		zap.String("user_id", sig.UserID),
		zap.String("reason", string(reason)),
		zap.Int("entries", len(snapshot)))
	return d.verdict(sig, reason, snapshot), true
}

// ClearMember drains a member's window, for callers outside the verdict path
// (e.g. a member coming back from AFK resets their tracked state).
func (d *Detector) ClearMember(guildID, userID string) {
	d.windows.clear(guildID, userID)
}

// Sweep reclaims windows whose entries have all aged out. Pruning also
// happens inline on every append; this bounds memory for members who went
// quiet mid-window.
func (d *Detector) Sweep() int {
	return d.windows.sweep(d.clock.Now(), d.policy.Window)
}

func (d *Detector) TrackedMembers() int {
	return d.windows.size()
}

func (d *Detector) verdict(sig Signal, reason Reason, entries []Entry) Verdict {
	d.windows.clear(sig.GuildID, sig.UserID)
	if d.metrics != nil {
		d.metrics.Verdicts.WithLabelValues(string(reason)).Inc()
	}
	return Verdict{
		GuildID:  sig.GuildID,
		UserID:   sig.UserID,
		Reason:   reason,
		Entries:  entries,
		JoinedAt: sig.JoinedAt,
	}
}

func (d *Detector) countObserved() {
	if d.metrics != nil {
		d.metrics.MessagesObserved.Inc()
	}
}

func (d *Detector) countExempt() {
	if d.metrics != nil {
		d.metrics.MessagesExempt.Inc()
	}
}
