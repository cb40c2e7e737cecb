package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// uniqueID keeps reruns against a persistent database independent.
func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// Tests here need a live Postgres; set TEST_DATABASE_URL to run them.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	store, err := New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestPointsLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	guildID := uniqueID("tg")

	total, err := store.AddPoints(ctx, guildID, "tu1", 10)
	if err != nil || total != 10 {
		t.Fatalf("expected 10 points, got %d (%v)", total, err)
	}
	total, err = store.AddPoints(ctx, guildID, "tu1", 5)
	if err != nil || total != 15 {
		t.Fatalf("expected 15 points, got %d (%v)", total, err)
	}
	total, err = store.RemovePoints(ctx, guildID, "tu1", 100)
	if err != nil || total != 0 {
		t.Fatalf("expected clamp at zero, got %d (%v)", total, err)
	}
}

func TestGetPointsMissingMember(t *testing.T) {
	store := testStore(t)
	total, err := store.GetPoints(context.Background(), "tg1", "nobody")
	if err != nil || total != 0 {
		t.Fatalf("expected zero for unknown member, got %d (%v)", total, err)
	}
}

func TestBanLimitCap(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	moderatorID := uniqueID("tmod")
	for i := 0; i < 3; i++ {
		ok, err := store.TryRecordBan(ctx, moderatorID, 3, time.Hour)
		if err != nil || !ok {
			t.Fatalf("ban %d should be allowed (%v)", i, err)
		}
	}
	ok, err := store.TryRecordBan(ctx, moderatorID, 3, time.Hour)
	if err != nil {
		t.Fatalf("cap check failed: %v", err)
	}
	if ok {
		t.Fatalf("fourth ban inside the window must be refused")
	}
}

func TestAFKRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	until := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	if err := store.SetAFK(ctx, "tg1", "tu2", until, "lunch"); err != nil {
		t.Fatalf("set afk: %v", err)
	}
	status, found, err := store.GetAFK(ctx, "tg1", "tu2")
	if err != nil || !found {
		t.Fatalf("expected afk status (%v)", err)
	}
	if status.Reason != "lunch" {
		t.Fatalf("unexpected reason %q", status.Reason)
	}
	if err := store.RemoveAFK(ctx, "tg1", "tu2"); err != nil {
		t.Fatalf("remove afk: %v", err)
	}
	if _, found, _ := store.GetAFK(ctx, "tg1", "tu2"); found {
		t.Fatalf("expected afk status removed")
	}
}

func TestRoleRemovalSchedule(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.ScheduleRoleRemoval(ctx, "tg1", "tu3", "tr1", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	due, err := store.DueRoleRemovals(ctx)
	if err != nil {
		t.Fatalf("due query: %v", err)
	}
	found := false
	for _, removal := range due {
		if removal.GuildID == "tg1" && removal.UserID == "tu3" && removal.RoleID == "tr1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the past-deadline removal to be due")
	}
	if err := store.DeleteRoleRemoval(ctx, "tg1", "tu3", "tr1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
