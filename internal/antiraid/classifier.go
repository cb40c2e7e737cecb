package antiraid

import (
	"time"

	"tortoise-guard/internal/config"
)

type Reason string

const (
	ReasonMultiChannelRepetition Reason = "multi_channel_repetition"
	ReasonMentionEveryone        Reason = "mention_everyone"
	ReasonBaitChannel            Reason = "bait_channel"
	ReasonPostJoinBurst          Reason = "post_join_burst"
)

// Verdict is the classifier's positive decision plus the window entries that
// produced it. It is consumed by the action pipeline and then discarded.
type Verdict struct {
	GuildID  string
	UserID   string
	Reason   Reason
	Entries  []Entry
	JoinedAt time.Time
}

type PolicyKind int

const (
	// KindChannelBreadth flags untrusted-role members posting repetitive
	// content across too many channels.
	KindChannelBreadth PolicyKind = iota
	// KindPostJoinBurst flags any member inside the join-grace period
	// posting across too many channels, with no repetition requirement.
	KindPostJoinBurst
)

type Policy struct {
	Kind              PolicyKind
	Window            time.Duration
	ChannelThreshold  int
	RepetitionCeiling int
	GracePeriod       time.Duration
	MaxLogSize        int
	RoleGateEnabled   bool
}

func PolicyFromConfig(cfg config.AntiRaidConfig) Policy {
	kind := KindChannelBreadth
	if cfg.Policy == config.PolicyPostJoinBurst {
		kind = KindPostJoinBurst
	}
	return Policy{
		Kind:              kind,
		Window:            time.Duration(cfg.WindowSeconds) * time.Second,
		ChannelThreshold:  cfg.ChannelThreshold,
		RepetitionCeiling: cfg.RepetitionCeiling,
		GracePeriod:       time.Duration(cfg.GracePeriodSeconds) * time.Second,
		MaxLogSize:        cfg.MaxLogSize,
		RoleGateEnabled:   cfg.RoleGateEnabled,
	}
}

// classify evaluates a pruned window snapshot. It runs after every append, so
// the first entry pushing the window over threshold produces the verdict.
// Thresholds are inclusive; an empty window never triggers.
func (p Policy) classify(entries []Entry) (Reason, bool) {
	if len(entries) == 0 {
		return "", false
	}

	channels := make(map[string]struct{}, len(entries))
	fingerprints := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		channels[entry.ChannelID] = struct{}{}
		fingerprints[entry.Fingerprint] = struct{}{}
	}

	if len(channels) < p.ChannelThreshold {
		return "", false
	}
	if p.RepetitionCeiling > 0 && len(fingerprints) > p.RepetitionCeiling {
		return "", false
	}

	if p.Kind == KindPostJoinBurst {
		return ReasonPostJoinBurst, true
	}
	return ReasonMultiChannelRepetition, true
}
