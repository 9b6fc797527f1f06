package archive

import (
	"context"
	"os"
	"testing"
	"time"
)

// getTestDatabaseURL returns the database to run integration tests against,
// skipping the test when none is configured.
func getTestDatabaseURL(t *testing.T) string {
	t.Helper()
	if url := os.Getenv("GAVEL_TEST_ARCHIVE_DATABASE_URL"); url != "" {
		return url
	}
	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url
	}
	t.Skip("no test database configured; set GAVEL_TEST_ARCHIVE_DATABASE_URL")
	return ""
}

func setupTestArchive(t *testing.T) *PostgresArchive {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := ApplyMigrations(ctx, db, "../../db/migrations"); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresArchive(db)
}

func TestRecordSessionRoundTrip(t *testing.T) {
	arch := setupTestArchive(t)
	ctx := context.Background()

	id := "ses_test_" + time.Now().UTC().Format("20060102150405.000000000")
	session := SessionRecord{
		ID:       id,
		Name:     "Security Council",
		Chair:    "chair",
		Topic:    "Cyber warfare",
		ClosedAt: time.Now().UTC(),
	}
	motions := []MotionRecord{
		{ID: id + ":m1", SessionID: id, Proposal: "Sanctions", Proposer: "France", Seconder: "Ghana", Type: "OpenModerated", CaucusSeconds: 600, SpeakerSeconds: 30, Position: 0},
		{ID: id + ":m2", SessionID: id, Proposer: "Japan", Type: "ExtendUnmoderated", CaucusSeconds: 300, Position: 1},
	}
	speeches := []SpeechRecord{
		{ID: id + ":c1:s1", SessionID: id, Caucus: "speakersList", Who: "France", Stance: "For", Duration: 45, Position: 0},
		{ID: id + ":c1:s2", SessionID: id, Caucus: "speakersList", Who: "Ghana", Stance: "Against", Duration: 45, Position: 1},
	}
	resolutions := []ResolutionRecord{
		{ID: id + ":r1", SessionID: id, Name: "Draft Resolution 1.0", Proposer: "France", Status: "Introduced", Text: "1. Calls upon member states;"},
	}

	if err := arch.RecordSession(ctx, session, motions, speeches, resolutions); err != nil {
		t.Fatalf("record session: %v", err)
	}

	got, err := arch.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Name != session.Name || got.Chair != session.Chair {
		t.Fatalf("unexpected session record: %+v", got)
	}

	gotMotions, err := arch.ListMotions(ctx, id)
	if err != nil {
		t.Fatalf("list motions: %v", err)
	}
	if len(gotMotions) != 2 || gotMotions[0].Position != 0 || gotMotions[1].Position != 1 {
		t.Fatalf("motions out of order: %+v", gotMotions)
	}

	gotSpeeches, err := arch.ListSpeeches(ctx, id)
	if err != nil {
		t.Fatalf("list speeches: %v", err)
	}
	if len(gotSpeeches) != 2 || gotSpeeches[0].Who != "France" || gotSpeeches[1].Who != "Ghana" {
		t.Fatalf("speeches out of order: %+v", gotSpeeches)
	}

	gotResolutions, err := arch.ListResolutions(ctx, id)
	if err != nil {
		t.Fatalf("list resolutions: %v", err)
	}
	if len(gotResolutions) != 1 || gotResolutions[0].Name != "Draft Resolution 1.0" {
		t.Fatalf("unexpected resolutions: %+v", gotResolutions)
	}
}
