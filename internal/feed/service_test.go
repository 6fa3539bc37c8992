package feed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T, name string) *Service {
	t.Helper()
	db := newTestDB(t, name)
	service, err := NewService(ServiceConfig{
		Database:      db,
		Clock:         func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		MaxMediaBytes: 1 << 10,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

func TestCreatePostPersistsBodyAndBucket(t *testing.T) {
	service := newTestService(t, "service_create")
	ctx := context.Background()

	post, err := service.CreatePost(ctx, "s1", "cust-1", "  hello world  ", "feed", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if post.ID == 0 {
		t.Fatalf("expected an assigned post id")
	}
	if post.Body != "hello world" {
		t.Fatalf("expected trimmed body, got %q", post.Body)
	}
	if post.Bucket != BucketFeed {
		t.Fatalf("unexpected bucket: %s", post.Bucket)
	}
}

func TestCreatePostNormalizesUnknownBucket(t *testing.T) {
	service := newTestService(t, "service_bucket")

	post, err := service.CreatePost(context.Background(), "s1", "cust-1", "body", "  TRADES ", []MediaUpload{{Mime: "image/png", Bytes: []byte{1}}})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if post.Bucket != BucketTrades {
		t.Fatalf("expected trades bucket, got %s", post.Bucket)
	}

	post, err = service.CreatePost(context.Background(), "s1", "cust-1", "body", "garbage", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if post.Bucket != BucketFeed {
		t.Fatalf("expected unknown bucket to land in feed, got %s", post.Bucket)
	}
}

func TestCreatePostValidation(t *testing.T) {
	service := newTestService(t, "service_validation")
	ctx := context.Background()

	if _, err := service.CreatePost(ctx, "s1", "cust-1", "   ", "feed", nil); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected empty body error, got %v", err)
	}
	long := strings.Repeat("x", maxPostBodyLength+1)
	if _, err := service.CreatePost(ctx, "s1", "cust-1", long, "feed", nil); !errors.Is(err, ErrBodyTooLong) {
		t.Fatalf("expected body too long error, got %v", err)
	}
	if _, err := service.CreatePost(ctx, "s1", "cust-1", "body", "collection", nil); !errors.Is(err, ErrMediaRequired) {
		t.Fatalf("expected media required error for collection, got %v", err)
	}
	if _, err := service.CreatePost(ctx, "s1", "cust-1", "body", "trades", nil); !errors.Is(err, ErrMediaRequired) {
		t.Fatalf("expected media required error for trades, got %v", err)
	}
	bad := []MediaUpload{{Mime: "application/pdf", Bytes: []byte{1}}}
	if _, err := service.CreatePost(ctx, "s1", "cust-1", "body", "feed", bad); !errors.Is(err, ErrMediaType) {
		t.Fatalf("expected media type error, got %v", err)
	}
	huge := []MediaUpload{{Mime: "image/png", Bytes: make([]byte, (1<<10)+1)}}
	if _, err := service.CreatePost(ctx, "s1", "cust-1", "body", "feed", huge); !errors.Is(err, ErrMediaTooLarge) {
		t.Fatalf("expected media too large error, got %v", err)
	}
}

func TestCreatePostAllowsMediaOnlyFeedPost(t *testing.T) {
	service := newTestService(t, "service_media_only")

	uploads := []MediaUpload{{Mime: "image/jpeg", Bytes: []byte{0xFF, 0xD8}}}
	post, err := service.CreatePost(context.Background(), "s1", "cust-1", "", "feed", uploads)
	if err != nil {
		t.Fatalf("expected media-only post to succeed, got %v", err)
	}
	if post.Body != "" {
		t.Fatalf("expected empty body, got %q", post.Body)
	}
}

func TestCreatePostStoresAttachmentsInOrder(t *testing.T) {
	service := newTestService(t, "service_media_order")

	uploads := []MediaUpload{
		{Mime: "image/png", Bytes: []byte{1}},
		{Mime: "image/webp", Bytes: []byte{2}},
	}
	post, err := service.CreatePost(context.Background(), "s1", "cust-1", "body", "collection", uploads)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var rows []Media
	if err := service.db.Where("post_id = ?", post.ID).Order("ordinal").Find(&rows).Error; err != nil {
		t.Fatalf("failed to load media: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 media rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Ordinal != i {
			t.Fatalf("unexpected ordinal at %d: %d", i, row.Ordinal)
		}
		if row.Key == "" {
			t.Fatalf("expected a serving key on media row %d", i)
		}
	}
	if rows[0].Mime != "image/png" || rows[1].Mime != "image/webp" {
		t.Fatalf("media rows out of order: %q, %q", rows[0].Mime, rows[1].Mime)
	}

	served, err := service.MediaByKey(context.Background(), rows[1].Key)
	if err != nil {
		t.Fatalf("media lookup failed: %v", err)
	}
	if served.Mime != "image/webp" || len(served.Bytes) != 1 || served.Bytes[0] != 2 {
		t.Fatalf("unexpected served media: %+v", served)
	}
}

func TestToggleLikeParity(t *testing.T) {
	service := newTestService(t, "service_like_parity")
	ctx := context.Background()

	post, err := service.CreatePost(ctx, "s1", "cust-1", "body", "feed", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for toggles := 1; toggles <= 5; toggles++ {
		liked, err := service.ToggleLike(ctx, "s1", post.ID, "cust-2")
		if err != nil {
			t.Fatalf("toggle %d failed: %v", toggles, err)
		}
		wantLiked := toggles%2 == 1
		if liked != wantLiked {
			t.Fatalf("toggle %d: got liked=%v, want %v", toggles, liked, wantLiked)
		}

		var count int64
		if err := service.db.Model(&Like{}).Where("post_id = ?", post.ID).Count(&count).Error; err != nil {
			t.Fatalf("failed to count likes: %v", err)
		}
		wantCount := int64(toggles % 2)
		if count != wantCount {
			t.Fatalf("after %d toggles: got %d likes, want %d", toggles, count, wantCount)
		}
	}
}

func TestToggleLikeIsScopedToShop(t *testing.T) {
	service := newTestService(t, "service_like_scope")
	ctx := context.Background()

	post, err := service.CreatePost(ctx, "s1", "cust-1", "body", "feed", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := service.ToggleLike(ctx, "other-shop", post.ID, "cust-2"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected cross-shop like to fail as not found, got %v", err)
	}
	if _, err := service.ToggleLike(ctx, "s1", post.ID+100, "cust-2"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected missing post to fail, got %v", err)
	}
}

func TestAddCommentPersistsAndValidates(t *testing.T) {
	service := newTestService(t, "service_comments")
	ctx := context.Background()

	post, err := service.CreatePost(ctx, "s1", "cust-1", "body", "feed", nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	comment, err := service.AddComment(ctx, "s1", post.ID, "cust-2", "  nice one  ")
	if err != nil {
		t.Fatalf("comment failed: %v", err)
	}
	if comment.ID == 0 || comment.Body != "nice one" {
		t.Fatalf("unexpected comment: %+v", comment)
	}

	if _, err := service.AddComment(ctx, "s1", post.ID, "cust-2", "   "); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected empty comment error, got %v", err)
	}
	long := strings.Repeat("y", maxCommentBodyLength+1)
	if _, err := service.AddComment(ctx, "s1", post.ID, "cust-2", long); !errors.Is(err, ErrCommentTooLong) {
		t.Fatalf("expected comment too long error, got %v", err)
	}
	if _, err := service.AddComment(ctx, "other-shop", post.ID, "cust-2", "hi"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected cross-shop comment to fail as not found, got %v", err)
	}
}
