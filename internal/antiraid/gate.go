package antiraid

import "time"

// Signal is one inbound message event, flattened to what the trust gate and
// classifier need. Role and permission membership are resolved by the caller
// at event time, so exemption changes take effect on the very next message.
type Signal struct {
	GuildID          string
	ChannelID        string
	MessageID        string
	UserID           string
	Fingerprint      string
	MentionsEveryone bool
	HasModPermission bool
	HasUntrustedRole bool
	JoinedAt         time.Time
}

// exempt decides whether the member is subject to window classification at
// all. Moderation-permission holders are filtered earlier in Observe and
// never reach this check.
func (p Policy) exempt(sig Signal, now time.Time) bool {
	if p.Kind == KindPostJoinBurst {
		// Only members still inside the join-grace period are scrutinized.
		if sig.JoinedAt.IsZero() {
			return true
		}
		return now.Sub(sig.JoinedAt) > p.GracePeriod
	}
	return p.RoleGateEnabled && !sig.HasUntrustedRole
}
