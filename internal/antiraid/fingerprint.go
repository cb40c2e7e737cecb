package antiraid

import (
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

const (
	fingerprintMaxLen = 500
	embedPreviewLen   = 200

	emptyPayload = "[Empty message payload]"
)

// Fingerprint reduces a message to a bounded string used for repetition
// comparison, so near-identical spam posted across channels collapses to
// equal fingerprints. Pure function of the message payload.
func Fingerprint(msg *discordgo.Message) string {
	var parts []string

	if content := strings.TrimSpace(msg.ContentWithMentionsReplaced()); content != "" {
		parts = append(parts, content)
	}

	for _, attachment := range msg.Attachments {
		parts = append(parts, "[Attachment] "+attachment.URL)
	}

	for _, embed := range msg.Embeds {
		if embed.URL != "" {
			parts = append(parts, "[Embed URL] "+embed.URL)
			continue
		}
		preview := strings.TrimSpace(embed.Title)
		if preview == "" {
			preview = strings.TrimSpace(embed.Description)
		}
		if preview != "" {
			parts = append(parts, "[Embed] "+truncate(preview, embedPreviewLen))
		}
	}

	if len(msg.StickerItems) > 0 {
		parts = append(parts, "[Sticker]")
	}

	if len(parts) == 0 {
		return emptyPayload
	}
	return truncate(strings.Join(parts, " | "), fingerprintMaxLen)
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
