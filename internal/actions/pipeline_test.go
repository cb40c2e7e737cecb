package actions

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"tortoise-guard/internal/antiraid"
	"tortoise-guard/internal/suppress"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeSink struct {
	dmErr     error
	deleteErr error
	banErr    error
	reportErr error

	dms     []string
	deletes [][2]string
	bans    [][2]string
	reports []string

	lastDM     *discordgo.MessageEmbed
	lastReport *discordgo.MessageEmbed
	banDays    int
}

func (f *fakeSink) SendDirectMessage(ctx context.Context, userID string, embed *discordgo.MessageEmbed) error {
	f.dms = append(f.dms, userID)
	f.lastDM = embed
	return f.dmErr
}

func (f *fakeSink) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.deletes = append(f.deletes, [2]string{channelID, messageID})
	return f.deleteErr
}

func (f *fakeSink) BanMember(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	f.bans = append(f.bans, [2]string{guildID, userID})
	f.banDays = deleteDays
	return f.banErr
}

func (f *fakeSink) SendChannelMessage(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	f.reports = append(f.reports, channelID)
	f.lastReport = embed
	return f.reportErr
}

func (f *fakeSink) GuildName(guildID string) string { return "Tortoise Community" }

func testVerdict() antiraid.Verdict {
	now := time.Unix(1700000000, 0)
	return antiraid.Verdict{
		GuildID: "g1",
		UserID:  "u1",
		Reason:  antiraid.ReasonMultiChannelRepetition,
		Entries: []antiraid.Entry{
			{At: now, ChannelID: "c1", Fingerprint: "spam", MessageID: "m1"},
			{At: now, ChannelID: "c2", Fingerprint: "spam", MessageID: "m2"},
			{At: now, ChannelID: "c3", Fingerprint: "spam", MessageID: "m3"},
		},
		JoinedAt: now.Add(-time.Hour),
	}
}

func newTestPipeline(sink *fakeSink) (*Pipeline, *suppress.Set) {
	suppressed := suppress.NewSet()
	pipeline := New(Config{ModLogChannelID: "mod", AppealURL: "https://appeal.example"}, sink, suppressed, zap.NewNop(), nil)
	return pipeline, suppressed
}

func TestPipelineFullSequence(t *testing.T) {
	sink := &fakeSink{}
	pipeline, suppressed := newTestPipeline(sink)

	pipeline.Execute(context.Background(), testVerdict())

	if len(sink.dms) != 1 || sink.dms[0] != "u1" {
		t.Fatalf("expected one DM to u1, got %v", sink.dms)
	}
	if len(sink.deletes) != 1 || sink.deletes[0] != [2]string{"c3", "m3"} {
		t.Fatalf("expected only the triggering message deleted, got %v", sink.deletes)
	}
	if len(sink.bans) != 1 || sink.bans[0] != [2]string{"g1", "u1"} {
		t.Fatalf("expected ban in g1 for u1, got %v", sink.bans)
	}
	if sink.banDays != 1 {
		t.Fatalf("expected one day of message purge, got %d", sink.banDays)
	}
	if len(sink.reports) != 1 || sink.reports[0] != "mod" {
		t.Fatalf("expected one mod report, got %v", sink.reports)
	}
	for _, id := range []string{"m1", "m2", "m3"} {
		if !suppressed.Discard(id) {
			t.Fatalf("expected %s suppressed before any deletion", id)
		}
	}
}

func TestPipelineDMFailureDoesNotHaltBan(t *testing.T) {
	sink := &fakeSink{dmErr: restError(http.StatusForbidden)}
	pipeline, _ := newTestPipeline(sink)

	pipeline.Execute(context.Background(), testVerdict())

	if len(sink.bans) != 1 {
		t.Fatalf("closed DMs must not prevent the ban")
	}
	if len(sink.reports) != 1 {
		t.Fatalf("closed DMs must not prevent the report")
	}
}

func TestPipelineDeleteFailureDoesNotHaltBan(t *testing.T) {
	sink := &fakeSink{deleteErr: restError(http.StatusNotFound)}
	pipeline, _ := newTestPipeline(sink)

	pipeline.Execute(context.Background(), testVerdict())

	if len(sink.bans) != 1 {
		t.Fatalf("a vanished message must not prevent the ban")
	}
}

func TestPipelineBanFailureSkipsReport(t *testing.T) {
	sink := &fakeSink{banErr: errors.New("missing permission")}
	pipeline, _ := newTestPipeline(sink)

	pipeline.Execute(context.Background(), testVerdict())

	if len(sink.reports) != 0 {
		t.Fatalf("an unenforced ban must not be reported")
	}
}

func TestPipelineNoModChannel(t *testing.T) {
	sink := &fakeSink{}
	suppressed := suppress.NewSet()
	pipeline := New(Config{}, sink, suppressed, zap.NewNop(), nil)

	pipeline.Execute(context.Background(), testVerdict())

	if len(sink.bans) != 1 {
		t.Fatalf("ban must run without a mod channel")
	}
	if len(sink.reports) != 0 {
		t.Fatalf("no report without a configured mod channel")
	}
}

func TestPipelineDMCarriesAppeal(t *testing.T) {
	sink := &fakeSink{}
	pipeline, _ := newTestPipeline(sink)

	pipeline.Execute(context.Background(), testVerdict())

	if sink.lastDM == nil || len(sink.lastDM.Fields) == 0 {
		t.Fatalf("expected appeal field in the ban notice")
	}
	if sink.lastDM.Fields[0].Name != "Appeal" {
		t.Fatalf("unexpected field %q", sink.lastDM.Fields[0].Name)
	}
}

func TestPipelineReportEvidence(t *testing.T) {
	sink := &fakeSink{}
	pipeline, _ := newTestPipeline(sink)

	pipeline.Execute(context.Background(), testVerdict())

	if sink.lastReport == nil {
		t.Fatalf("expected a mod report")
	}
	var messages string
	for _, field := range sink.lastReport.Fields {
		if field.Name == "Messages" {
			messages = field.Value
		}
	}
	if messages == "" {
		t.Fatalf("report must include the evidence entries")
	}
	if len(messages) > 1024 {
		t.Fatalf("evidence field exceeds the embed limit: %d", len(messages))
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	value := strings.Repeat("世", 100)
	got := truncate(value, 200)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune")
	}
	if len(got) > 200 {
		t.Fatalf("truncation exceeds limit: %d", len(got))
	}
	if truncate("short", 200) != "short" {
		t.Fatalf("values under the limit must pass through")
	}
}

func TestErrorClassification(t *testing.T) {
	if !IsForbidden(restError(http.StatusForbidden)) {
		t.Fatalf("expected 403 to classify as forbidden")
	}
	if !IsNotFound(restError(http.StatusNotFound)) {
		t.Fatalf("expected 404 to classify as not found")
	}
	if IsForbidden(errors.New("network down")) {
		t.Fatalf("plain errors must not classify as forbidden")
	}
}

func restError(status int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: status}}
}
