package feed

import (
	"errors"
	"strings"
	"time"
)

// Bucket partitions the timeline into three independent streams.
type Bucket string

const (
	BucketFeed       Bucket = "feed"
	BucketCollection Bucket = "collection"
	BucketTrades     Bucket = "trades"
)

const (
	maxPostBodyLength    = 500
	maxCommentBodyLength = 300
)

var (
	// ErrEmptyBody indicates a post or comment with no usable text.
	ErrEmptyBody = errors.New("feed: body must not be empty")
	// ErrBodyTooLong indicates the post body exceeds the storage bound.
	ErrBodyTooLong = errors.New("feed: post body exceeds 500 characters")
	// ErrCommentTooLong indicates the comment body exceeds the storage bound.
	ErrCommentTooLong = errors.New("feed: comment body exceeds 300 characters")
	// ErrMediaRequired indicates a collection or trades post without media.
	ErrMediaRequired = errors.New("feed: this bucket requires at least one image")
	// ErrMediaType indicates an upload outside the image allowlist.
	ErrMediaType = errors.New("feed: unsupported media type")
	// ErrMediaTooLarge indicates an upload above the configured byte cap.
	ErrMediaTooLarge = errors.New("feed: media exceeds the size limit")
	// ErrPostNotFound indicates the referenced post does not exist in the shop.
	ErrPostNotFound = errors.New("feed: post not found")
)

// NormalizeBucket maps arbitrary input onto one of the three known buckets.
// Anything unrecognized lands in the default feed bucket.
func NormalizeBucket(raw string) Bucket {
	switch Bucket(strings.ToLower(strings.TrimSpace(raw))) {
	case BucketCollection:
		return BucketCollection
	case BucketTrades:
		return BucketTrades
	default:
		return BucketFeed
	}
}

// Post is a customer-authored entry in one bucket of a shop's timeline.
// Posts are immutable once created.
type Post struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Shop       string    `gorm:"column:shop;size:190;not null;index:idx_posts_timeline,priority:1"`
	CustomerID string    `gorm:"column:customer_id;size:190;not null;index"`
	Body       string    `gorm:"column:body;type:text;not null"`
	Bucket     Bucket    `gorm:"column:bucket;size:32;not null;index:idx_posts_timeline,priority:2"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;autoCreateTime;index:idx_posts_timeline,priority:3"`
}

// TableName provides the explicit table binding for GORM.
func (Post) TableName() string {
	return "posts"
}

// Media holds an uploaded file attached to a post, stored and served as-is.
// Key is the public serving handle so row ids stay un-enumerable.
type Media struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	PostID    uint64    `gorm:"column:post_id;not null;index"`
	Ordinal   int       `gorm:"column:ordinal;not null"`
	Key       string    `gorm:"column:key;size:64;not null;uniqueIndex"`
	Mime      string    `gorm:"column:mime;size:128;not null"`
	Bytes     []byte    `gorm:"column:bytes;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Media) TableName() string {
	return "post_media"
}

// Like is a join row; presence means the customer liked the post.
type Like struct {
	PostID     uint64    `gorm:"column:post_id;primaryKey;autoIncrement:false"`
	CustomerID string    `gorm:"column:customer_id;primaryKey;size:190"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Like) TableName() string {
	return "post_likes"
}

// Comment is an append-only reply on a post.
type Comment struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	PostID     uint64    `gorm:"column:post_id;not null;index:idx_comments_post_time,priority:1"`
	CustomerID string    `gorm:"column:customer_id;size:190;not null"`
	Body       string    `gorm:"column:body;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;autoCreateTime;index:idx_comments_post_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "post_comments"
}
