package aoc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleBoard = `{
	"event": "2025",
	"members": {
		"1": {"name": "alice", "stars": 20, "local_score": 300},
		"2": {"name": "bob", "stars": 10, "local_score": 150},
		"3": {"name": "", "stars": 30, "local_score": 450}
	}
}`

func TestClientRefreshAndCache(t *testing.T) {
	var gotCookie, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie("session"); err == nil {
			gotCookie = cookie.Value
		}
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(sampleBoard))
	}))
	defer server.Close()

	client := NewClient("4922988", 2025, "secret")
	client.url = server.URL

	if _, ok := client.Cached(); ok {
		t.Fatalf("cache must be empty before the first refresh")
	}
	if err := client.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if gotCookie != "secret" {
		t.Fatalf("expected session cookie sent, got %q", gotCookie)
	}
	if gotAgent == "" {
		t.Fatalf("expected a user agent")
	}

	board, ok := client.Cached()
	if !ok || len(board.Members) != 3 {
		t.Fatalf("expected 3 cached members, got %v %v", board, ok)
	}
	if board.Members["1"].LocalScore != 300 {
		t.Fatalf("unexpected member data: %+v", board.Members["1"])
	}
}

func TestClientRefreshKeepsCacheOnFailure(t *testing.T) {
	fail := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(sampleBoard))
	}))
	defer server.Close()

	client := NewClient("4922988", 2025, "secret")
	client.url = server.URL

	if err := client.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	fail = true
	if err := client.Refresh(context.Background()); err == nil {
		t.Fatalf("expected error on server failure")
	}
	if _, ok := client.Cached(); !ok {
		t.Fatalf("failed refresh must keep the previous cache")
	}
}

func TestFormatTopOrdersByScore(t *testing.T) {
	board := &Leaderboard{Members: map[string]Member{
		"1": {Name: "alice", Stars: 20, LocalScore: 300},
		"2": {Name: "bob", Stars: 10, LocalScore: 150},
		"3": {Name: "", Stars: 30, LocalScore: 450},
	}}
	out := FormatTop(board, 10)

	first := strings.Index(out, "(anonymous)")
	second := strings.Index(out, "alice")
	third := strings.Index(out, "bob")
	if first == -1 || second == -1 || third == -1 {
		t.Fatalf("missing members in output:\n%s", out)
	}
	if !(first < second && second < third) {
		t.Fatalf("expected descending score order:\n%s", out)
	}
	if !strings.HasPrefix(out, "```py\n") || !strings.HasSuffix(out, "```") {
		t.Fatalf("expected a code block:\n%s", out)
	}
}

func TestFormatTopLimits(t *testing.T) {
	board := &Leaderboard{Members: map[string]Member{
		"1": {Name: "alice", LocalScore: 300},
		"2": {Name: "bob", LocalScore: 150},
	}}
	out := FormatTop(board, 1)
	if strings.Contains(out, "bob") {
		t.Fatalf("expected only the top member:\n%s", out)
	}
}

func TestCountdownDecember(t *testing.T) {
	now := time.Date(2025, time.December, 5, 20, 0, 0, 0, puzzleZone)
	day, remaining, active := Countdown(now)
	if !active {
		t.Fatalf("expected active during December")
	}
	if day != 5 {
		t.Fatalf("expected day 5, got %d", day)
	}
	if remaining != 4*time.Hour {
		t.Fatalf("expected 4h until next puzzle, got %s", remaining)
	}
}

func TestCountdownOffSeason(t *testing.T) {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	if _, _, active := Countdown(now); active {
		t.Fatalf("expected inactive outside December")
	}
}
