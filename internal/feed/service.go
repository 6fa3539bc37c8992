package feed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("feed: database handle is required")

	allowedMediaTypes = map[string]struct{}{
		"image/jpeg": {},
		"image/png":  {},
		"image/gif":  {},
		"image/webp": {},
	}
)

// MediaUpload is one decoded multipart file ready for attachment.
type MediaUpload struct {
	Mime  string
	Bytes []byte
}

// ServiceConfig bundles the dependencies of the feed write service.
type ServiceConfig struct {
	Database      *gorm.DB
	Clock         func() time.Time
	Logger        *zap.Logger
	MaxMediaBytes int64
}

// Service owns the write side of the timeline: posts, likes, comments.
type Service struct {
	db            *gorm.DB
	clock         func() time.Time
	logger        *zap.Logger
	maxMediaBytes int64
}

// NewService constructs the feed service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBytes := cfg.MaxMediaBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &Service{
		db:            cfg.Database,
		clock:         clock,
		logger:        logger,
		maxMediaBytes: maxBytes,
	}, nil
}

// CreatePost validates and persists a post with its attachments in one
// transaction. Collection and trades posts must carry at least one media item;
// that rule lives here at the write boundary, not in the schema.
func (s *Service) CreatePost(ctx context.Context, shop, customerID, body, rawBucket string, uploads []MediaUpload) (Post, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" && len(uploads) == 0 {
		return Post{}, ErrEmptyBody
	}
	if len(trimmed) > maxPostBodyLength {
		return Post{}, ErrBodyTooLong
	}
	bucket := NormalizeBucket(rawBucket)
	if (bucket == BucketCollection || bucket == BucketTrades) && len(uploads) == 0 {
		return Post{}, ErrMediaRequired
	}
	for _, upload := range uploads {
		if _, ok := allowedMediaTypes[upload.Mime]; !ok {
			return Post{}, ErrMediaType
		}
		if int64(len(upload.Bytes)) > s.maxMediaBytes {
			return Post{}, ErrMediaTooLarge
		}
	}

	post := Post{
		Shop:       shop,
		CustomerID: customerID,
		Body:       trimmed,
		Bucket:     bucket,
		CreatedAt:  s.clock().UTC(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		for ordinal, upload := range uploads {
			media := Media{
				PostID:  post.ID,
				Ordinal: ordinal,
				Key:     uuid.NewString(),
				Mime:    upload.Mime,
				Bytes:   upload.Bytes,
			}
			if err := tx.Create(&media).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Post{}, err
	}

	s.logger.Info("post created",
		zap.Uint64("post_id", post.ID),
		zap.String("shop", shop),
		zap.String("bucket", string(bucket)))
	return post, nil
}

// ToggleLike flips the viewer's like on a post. The decision is an explicit
// existence check inside one transaction; uniqueness on (post_id, customer_id)
// remains the schema-level backstop.
func (s *Service) ToggleLike(ctx context.Context, shop string, postID uint64, customerID string) (bool, error) {
	liked := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requirePost(tx, shop, postID); err != nil {
			return err
		}
		var existing Like
		err := tx.Where("post_id = ? AND customer_id = ?", postID, customerID).
			Take(&existing).Error
		if err == nil {
			return tx.Delete(&existing).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		liked = true
		return tx.Create(&Like{
			PostID:     postID,
			CustomerID: customerID,
			CreatedAt:  s.clock().UTC(),
		}).Error
	})
	if err != nil {
		return false, err
	}
	return liked, nil
}

// AddComment appends a comment to a post.
func (s *Service) AddComment(ctx context.Context, shop string, postID uint64, customerID, body string) (Comment, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return Comment{}, ErrEmptyBody
	}
	if len(trimmed) > maxCommentBodyLength {
		return Comment{}, ErrCommentTooLong
	}

	comment := Comment{
		PostID:     postID,
		CustomerID: customerID,
		Body:       trimmed,
		CreatedAt:  s.clock().UTC(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requirePost(tx, shop, postID); err != nil {
			return err
		}
		return tx.Create(&comment).Error
	})
	if err != nil {
		return Comment{}, err
	}
	return comment, nil
}

// MediaByKey loads a stored attachment by its public serving handle.
func (s *Service) MediaByKey(ctx context.Context, key string) (Media, error) {
	var media Media
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&media).Error
	if err != nil {
		return Media{}, err
	}
	return media, nil
}

// requirePost keeps every write shop-scoped: a post id from another shop is
// indistinguishable from a missing one.
func (s *Service) requirePost(tx *gorm.DB, shop string, postID uint64) error {
	var post Post
	err := tx.Select("id").Where("id = ? AND shop = ?", postID, shop).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPostNotFound
	}
	return err
}
