package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/stoa/internal/feed"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := OpenSQLite(dsn, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	return db
}

func TestOpenSQLiteCreatesSchema(t *testing.T) {
	db := openTestDatabase(t, "database_schema")

	tables := []string{
		"posts", "post_media", "post_likes", "post_comments",
		"customer_profiles", "customer_follows", "direct_messages",
		"db_migrations",
	}
	for _, table := range tables {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("expected table %q to exist", table)
		}
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite("", nil); err == nil {
		t.Fatalf("expected error for empty database path")
	}
}

func TestMigrationsRecordedOnce(t *testing.T) {
	db := openTestDatabase(t, "database_migrations_once")

	var count int64
	err := db.Model(&migrationRecord{}).
		Where("name = ?", migrationNormalizeLegacyBuckets).
		Count(&count).Error
	if err != nil {
		t.Fatalf("failed to count migration records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one migration record, got %d", count)
	}

	// Re-running against the same store must not re-apply anything.
	if err := applyMigrations(db, nil); err != nil {
		t.Fatalf("reapply failed: %v", err)
	}
	err = db.Model(&migrationRecord{}).
		Where("name = ?", migrationNormalizeLegacyBuckets).
		Count(&count).Error
	if err != nil {
		t.Fatalf("failed to recount migration records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected migration to stay recorded once, got %d", count)
	}
}

func TestNormalizeLegacyBucketsFoldsUnknownValues(t *testing.T) {
	db := openTestDatabase(t, "database_legacy_buckets")

	posts := []feed.Post{
		{Shop: "s1", CustomerID: "cust-1", Body: "old", Bucket: "wall", CreatedAt: time.Now().UTC()},
		{Shop: "s1", CustomerID: "cust-1", Body: "kept", Bucket: feed.BucketTrades, CreatedAt: time.Now().UTC()},
	}
	for i := range posts {
		if err := db.Create(&posts[i]).Error; err != nil {
			t.Fatalf("failed to seed post: %v", err)
		}
	}

	if err := normalizeLegacyBuckets(db); err != nil {
		t.Fatalf("normalization failed: %v", err)
	}

	var reloaded feed.Post
	if err := db.First(&reloaded, posts[0].ID).Error; err != nil {
		t.Fatalf("failed to reload post: %v", err)
	}
	if reloaded.Bucket != feed.BucketFeed {
		t.Fatalf("expected legacy bucket folded into feed, got %q", reloaded.Bucket)
	}
	reloaded = feed.Post{}
	if err := db.First(&reloaded, posts[1].ID).Error; err != nil {
		t.Fatalf("failed to reload post: %v", err)
	}
	if reloaded.Bucket != feed.BucketTrades {
		t.Fatalf("expected known bucket untouched, got %q", reloaded.Bucket)
	}
}
