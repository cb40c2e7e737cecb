package antiraid

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

func TestFingerprintPlainContent(t *testing.T) {
	msg := &discordgo.Message{Content: "  free nitro click here  "}
	if got := Fingerprint(msg); got != "free nitro click here" {
		t.Fatalf("expected trimmed content, got %q", got)
	}
}

func TestFingerprintEmptyPayload(t *testing.T) {
	if got := Fingerprint(&discordgo.Message{}); got != "[Empty message payload]" {
		t.Fatalf("expected empty-payload sentinel, got %q", got)
	}
}

func TestFingerprintAttachmentOnly(t *testing.T) {
	msg := &discordgo.Message{
		Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn.example/a.png"}},
	}
	if got := Fingerprint(msg); got != "[Attachment] https://cdn.example/a.png" {
		t.Fatalf("unexpected fingerprint %q", got)
	}
}

func TestFingerprintJoinsParts(t *testing.T) {
	msg := &discordgo.Message{
		Content:     "hello",
		Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn.example/a.png"}},
		Embeds:      []*discordgo.MessageEmbed{{URL: "https://spam.example"}},
	}
	want := "hello | [Attachment] https://cdn.example/a.png | [Embed URL] https://spam.example"
	if got := Fingerprint(msg); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFingerprintEmbedPreview(t *testing.T) {
	msg := &discordgo.Message{
		Embeds: []*discordgo.MessageEmbed{{Description: strings.Repeat("x", 300)}},
	}
	got := Fingerprint(msg)
	if !strings.HasPrefix(got, "[Embed] ") {
		t.Fatalf("expected embed preview, got %q", got)
	}
	if len(got) != len("[Embed] ")+200 {
		t.Fatalf("expected preview capped at 200 chars, got len %d", len(got))
	}
}

func TestFingerprintSticker(t *testing.T) {
	msg := &discordgo.Message{
		StickerItems: []*discordgo.StickerItem{{ID: "1", Name: "turtle"}},
	}
	if got := Fingerprint(msg); got != "[Sticker]" {
		t.Fatalf("unexpected fingerprint %q", got)
	}
}

func TestFingerprintBounded(t *testing.T) {
	msg := &discordgo.Message{Content: strings.Repeat("a", 2000)}
	if got := Fingerprint(msg); len(got) != 500 {
		t.Fatalf("expected fingerprint capped at 500, got len %d", len(got))
	}
}

func TestFingerprintTruncatesOnRuneBoundary(t *testing.T) {
	// 3-byte runes; 500 is not a multiple of 3, so a byte cut would split one.
	msg := &discordgo.Message{Content: strings.Repeat("世", 200)}
	got := Fingerprint(msg)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated fingerprint is not valid UTF-8")
	}
	if len(got) > 500 {
		t.Fatalf("fingerprint exceeds cap: %d", len(got))
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	msg := &discordgo.Message{Content: "same spam"}
	if Fingerprint(msg) != Fingerprint(msg) {
		t.Fatalf("expected identical payloads to produce identical fingerprints")
	}
}
