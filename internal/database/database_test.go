package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-while/pugboard/internal/models"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	cfg := DefaultDBConfig()
	cfg.Path = filepath.Join(t.TempDir(), "board.db")
	db, err := OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// withClock makes now() return start, start+1s, start+2s, ...
func withClock(t *testing.T, start time.Time) {
	t.Helper()
	orig := now
	tick := start
	now = func() time.Time {
		cur := tick
		tick = tick.Add(time.Second)
		return cur
	}
	t.Cleanup(func() { now = orig })
}

func TestOpenDatabaseMigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "board.db")
	cfg := DefaultDBConfig()
	cfg.Path = path

	db, err := OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("OpenDatabase: %v", err)
	}
	db.Close()

	// reopening must not re-run migrations
	db, err = OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.GetMainDB().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	migrations, err := getEmbeddedMigrationFiles(EmbeddedMigrationsFS)
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	if n != len(migrations) {
		t.Fatalf("applied %d migrations, want %d", n, len(migrations))
	}
}

func TestOpenDatabaseConnectionError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := DefaultDBConfig()
	cfg.Path = filepath.Join(blocker, "board.db") // parent is a regular file

	_, err := OpenDatabase(cfg)
	var serr *models.StoreConnectionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StoreConnectionError, got %v", err)
	}
}

func TestParseMigrationFileName(t *testing.T) {
	m, err := parseMigrationFileName("0002_main_replies.sql")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Version != 2 || m.Type != MigrationTypeMain || m.Description != "replies" {
		t.Fatalf("unexpected %+v", m)
	}
	for _, bad := range []string{"0001_main.sql", "x_main_posts.sql", "0001_group_posts.sql", "0001_main_posts.txt"} {
		if _, err := parseMigrationFileName(bad); err == nil {
			t.Errorf("%s: expected error", bad)
		}
	}
}

func TestCreateAndListPosts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	withClock(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	var ids []int64
	for i := 0; i < 5; i++ {
		p, err := db.CreatePost(ctx, "Anonymous", fmt.Sprintf("post %d", i))
		if err != nil {
			t.Fatalf("CreatePost: %v", err)
		}
		ids = append(ids, p.ID)
	}

	total, err := db.CountPosts(ctx)
	if err != nil || total != 5 {
		t.Fatalf("CountPosts = %d, %v", total, err)
	}

	page, err := db.ListBoardPosts(ctx, 3, 0)
	if err != nil {
		t.Fatalf("ListBoardPosts: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("got %d posts, want 3", len(page))
	}
	// newest first
	for i, want := range []int64{ids[4], ids[3], ids[2]} {
		if page[i].ID != want {
			t.Fatalf("page[%d].ID = %d, want %d", i, page[i].ID, want)
		}
	}

	page, err = db.ListBoardPosts(ctx, 3, 3)
	if err != nil {
		t.Fatalf("ListBoardPosts page 2: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[1] || page[1].ID != ids[0] {
		t.Fatalf("unexpected second page %+v", page)
	}
}

func TestSameTimestampOrdersByID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orig := now
	now = func() time.Time { return fixed }
	defer func() { now = orig }()

	a, _ := db.CreatePost(ctx, "a", "first")
	b, _ := db.CreatePost(ctx, "b", "second")
	r1, _ := db.CreateReply(ctx, a.ID, "x", "one")
	r2, _ := db.CreateReply(ctx, a.ID, "y", "two")

	page, err := db.ListBoardPosts(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListBoardPosts: %v", err)
	}
	if page[0].ID != b.ID || page[1].ID != a.ID {
		t.Fatalf("board order wrong: %d, %d", page[0].ID, page[1].ID)
	}
	replies, err := db.GetReplies(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetReplies: %v", err)
	}
	if replies[0].ID != r1.ID || replies[1].ID != r2.ID {
		t.Fatalf("reply order wrong")
	}
}

func TestRepliesAndCounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	withClock(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	busy, _ := db.CreatePost(ctx, "Anonymous", "busy")
	quiet, _ := db.CreatePost(ctx, "Anonymous", "quiet")

	for i := 0; i < 3; i++ {
		if _, err := db.CreateReply(ctx, busy.ID, "r", fmt.Sprintf("reply %d", i)); err != nil {
			t.Fatalf("CreateReply: %v", err)
		}
	}

	page, err := db.ListBoardPosts(ctx, 30, 0)
	if err != nil {
		t.Fatalf("ListBoardPosts: %v", err)
	}
	counts := map[int64]int{}
	for _, bp := range page {
		counts[bp.ID] = bp.ReplyCount
	}
	if counts[busy.ID] != 3 || counts[quiet.ID] != 0 {
		t.Fatalf("reply counts = %v", counts)
	}
	replies, err := db.GetReplies(ctx, busy.ID)
	if err != nil {
		t.Fatalf("GetReplies: %v", err)
	}
	if len(replies) != counts[busy.ID] {
		t.Fatalf("board shows %d replies, thread has %d", counts[busy.ID], len(replies))
	}
	for i := 1; i < len(replies); i++ {
		if replies[i].CreatedAt.Before(replies[i-1].CreatedAt) {
			t.Fatalf("replies not ascending at %d", i)
		}
	}
	if replies[0].Body != "reply 0" || replies[2].Body != "reply 2" {
		t.Fatalf("unexpected reply order: %q .. %q", replies[0].Body, replies[2].Body)
	}
}

func TestReplyToMissingPost(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.CreateReply(ctx, 4242, "x", "orphan"); !errors.Is(err, models.ErrPostNotFound) {
		t.Fatalf("CreateReply = %v, want ErrPostNotFound", err)
	}
	if _, err := db.GetPost(ctx, 4242); !errors.Is(err, models.ErrPostNotFound) {
		t.Fatalf("GetPost = %v, want ErrPostNotFound", err)
	}
	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Replies != 0 {
		t.Fatalf("orphan reply was written")
	}
}

func TestGetPostRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	created, err := db.CreatePost(ctx, "bob", "line one\nline two")
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	got, err := db.GetPost(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if got.Name != "bob" || got.Body != "line one\nline two" {
		t.Fatalf("unexpected post %+v", got)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at %v != %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestResetBoard(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p, _ := db.CreatePost(ctx, "a", "b")
	db.CreateReply(ctx, p.ID, "c", "d")

	if err := db.ResetBoard(ctx); err != nil {
		t.Fatalf("ResetBoard: %v", err)
	}
	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Posts != 0 || stats.Replies != 0 {
		t.Fatalf("board not empty: %+v", stats)
	}
	p2, err := db.CreatePost(ctx, "a", "b")
	if err != nil {
		t.Fatalf("CreatePost after reset: %v", err)
	}
	if p2.ID != 1 {
		t.Fatalf("id counter not reset: %d", p2.ID)
	}
}

func TestSessions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cur := start
	orig := now
	now = func() time.Time { return cur }
	defer func() { now = orig }()

	s, err := db.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if len(s.ID) != models.SessionIDLength || len(s.CSRFToken) != models.CSRFTokenLength {
		t.Fatalf("bad token lengths: %d %d", len(s.ID), len(s.CSRFToken))
	}

	got, err := db.GetSession(ctx, s.ID, time.Hour)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.CSRFToken != s.CSRFToken {
		t.Fatalf("token mismatch")
	}

	if _, err := db.GetSession(ctx, "nope", time.Hour); !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("GetSession(unknown) = %v", err)
	}

	// idle past the timeout
	cur = start.Add(2 * time.Hour)
	if _, err := db.GetSession(ctx, s.ID, time.Hour); !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("expired session still valid: %v", err)
	}

	// touching keeps it alive
	if err := db.TouchSession(ctx, s.ID); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}
	cur = start.Add(150 * time.Minute)
	if _, err := db.GetSession(ctx, s.ID, time.Hour); err != nil {
		t.Fatalf("touched session expired: %v", err)
	}

	cur = start.Add(5 * time.Hour)
	n, err := db.CleanupExpiredSessions(ctx, time.Hour)
	if err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}
	if n != 1 {
		t.Fatalf("cleaned %d sessions, want 1", n)
	}
}

func TestIsRetryableError(t *testing.T) {
	if isRetryableError(nil) {
		t.Fatalf("nil is not retryable")
	}
	if !isRetryableError(errors.New("database is locked")) {
		t.Fatalf("locked should be retryable")
	}
	if isRetryableError(errors.New("no such table: posts")) {
		t.Fatalf("schema errors are not retryable")
	}
}
