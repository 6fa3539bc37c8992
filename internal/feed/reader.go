package feed

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recentCommentsPerPost = 2

var errMissingReaderDatabase = errors.New("feed: reader requires a database handle")

// DisplayNameResolver maps customer ids to display names for comment previews.
type DisplayNameResolver interface {
	DisplayNames(ctx context.Context, shop string, customerIDs []string) (map[string]string, error)
}

// CommentPreview is one of the most recent comments shown under a timeline item.
type CommentPreview struct {
	CustomerID  string
	DisplayName string
	Body        string
	CreatedAt   time.Time
}

// MediaDescriptor references an attachment without carrying its bytes.
type MediaDescriptor struct {
	Key     string
	Mime    string
	Ordinal int
}

// TimelineItem is a post enriched for rendering.
type TimelineItem struct {
	Post           Post
	AuthorName     string
	LikeCount      int64
	ViewerLiked    bool
	CommentCount   int64
	RecentComments []CommentPreview
	Media          []MediaDescriptor
}

// TimelinePage is one page of a bucketed timeline. An empty NextCursor marks
// end of data.
type TimelinePage struct {
	Items      []TimelineItem
	NextCursor string
}

// ReaderConfig bundles the timeline reader dependencies.
type ReaderConfig struct {
	Database *gorm.DB
	Names    DisplayNameResolver
	Logger   *zap.Logger
}

// Reader serves cursor-paginated, batch-enriched timeline pages.
type Reader struct {
	db     *gorm.DB
	names  DisplayNameResolver
	logger *zap.Logger
}

// NewReader constructs a Reader.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	if cfg.Database == nil {
		return nil, errMissingReaderDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{db: cfg.Database, names: cfg.Names, logger: logger}, nil
}

// Read returns one page of the shop's timeline for the given bucket, resuming
// after the opaque cursor when one is supplied. Rows are ordered by
// (created_at DESC, id DESC); the id tie-break keeps pagination deterministic
// when timestamps collide. A page of exactly `limit` rows yields a cursor for
// the next page; a short page yields an empty cursor. If the store is
// unavailable the page is empty rather than an error, so callers can keep the
// HTTP-200 contract and render "no posts".
func (r *Reader) Read(ctx context.Context, shop, viewerID string, bucket Bucket, limit int, cursorValue string) TimelinePage {
	if limit <= 0 {
		limit = 10
	}

	query := r.db.WithContext(ctx).
		Where("shop = ? AND bucket = ?", shop, bucket)
	if cursor, ok := DecodeCursor(cursorValue); ok {
		// Strictly older than the cursor's sort key: rows inserted after the
		// cursor was issued sort ahead of it and are never revisited.
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var posts []Post
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		r.logger.Error("timeline query failed", zap.String("shop", shop), zap.Error(err))
		return TimelinePage{}
	}
	if len(posts) == 0 {
		return TimelinePage{}
	}

	page := TimelinePage{Items: r.enrich(ctx, shop, viewerID, posts)}
	if len(posts) == limit {
		page.NextCursor = cursorForPost(posts[len(posts)-1])
	}
	return page
}

// ReadAuthor returns the most recent posts by one customer across all
// buckets, enriched the same way as a timeline page. Profile pages render a
// bounded recent window, so there is no cursor here.
func (r *Reader) ReadAuthor(ctx context.Context, shop, viewerID, authorID string, limit int) []TimelineItem {
	if limit <= 0 {
		limit = 10
	}
	var posts []Post
	err := r.db.WithContext(ctx).
		Where("shop = ? AND customer_id = ?", shop, authorID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		r.logger.Error("author timeline query failed", zap.String("shop", shop), zap.Error(err))
		return nil
	}
	if len(posts) == 0 {
		return nil
	}
	return r.enrich(ctx, shop, viewerID, posts)
}

// enrich runs one batched pass per concern over the page's post ids. A failed
// pass degrades that concern (zero counts, empty previews) instead of failing
// the page.
func (r *Reader) enrich(ctx context.Context, shop, viewerID string, posts []Post) []TimelineItem {
	postIDs := make([]uint64, 0, len(posts))
	authorIDs := make([]string, 0, len(posts))
	for _, post := range posts {
		postIDs = append(postIDs, post.ID)
		authorIDs = append(authorIDs, post.CustomerID)
	}

	likeCounts := r.countByPost(ctx, &Like{}, postIDs)
	commentCounts := r.countByPost(ctx, &Comment{}, postIDs)
	viewerLikes := r.viewerLikes(ctx, viewerID, postIDs)
	previews := r.recentComments(ctx, shop, postIDs)
	media := r.mediaDescriptors(ctx, postIDs)
	names := r.resolveNames(ctx, shop, authorIDs)

	items := make([]TimelineItem, 0, len(posts))
	for _, post := range posts {
		items = append(items, TimelineItem{
			Post:           post,
			AuthorName:     names[post.CustomerID],
			LikeCount:      likeCounts[post.ID],
			ViewerLiked:    viewerLikes[post.ID],
			CommentCount:   commentCounts[post.ID],
			RecentComments: previews[post.ID],
			Media:          media[post.ID],
		})
	}
	return items
}

type postCountRow struct {
	PostID uint64 `gorm:"column:post_id"`
	Total  int64  `gorm:"column:total"`
}

func (r *Reader) countByPost(ctx context.Context, model any, postIDs []uint64) map[uint64]int64 {
	counts := make(map[uint64]int64, len(postIDs))
	if len(postIDs) == 0 {
		return counts
	}
	var rows []postCountRow
	err := r.db.WithContext(ctx).
		Model(model).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		r.logger.Warn("count enrichment failed", zap.Error(err))
		return counts
	}
	for _, row := range rows {
		counts[row.PostID] = row.Total
	}
	return counts
}

func (r *Reader) viewerLikes(ctx context.Context, viewerID string, postIDs []uint64) map[uint64]bool {
	liked := make(map[uint64]bool)
	if viewerID == "" || len(postIDs) == 0 {
		return liked
	}
	var likedIDs []uint64
	err := r.db.WithContext(ctx).
		Model(&Like{}).
		Where("post_id IN ? AND customer_id = ?", postIDs, viewerID).
		Pluck("post_id", &likedIDs).Error
	if err != nil {
		r.logger.Warn("viewer like enrichment failed", zap.Error(err))
		return liked
	}
	for _, id := range likedIDs {
		liked[id] = true
	}
	return liked
}

func (r *Reader) recentComments(ctx context.Context, shop string, postIDs []uint64) map[uint64][]CommentPreview {
	previews := make(map[uint64][]CommentPreview)
	if len(postIDs) == 0 {
		return previews
	}

	// Per-post rank cutoff keeps this a single query regardless of page size.
	var comments []Comment
	err := r.db.WithContext(ctx).Raw(`
		SELECT post_id, customer_id, body, created_at FROM (
			SELECT post_id, customer_id, body, created_at,
			       ROW_NUMBER() OVER (PARTITION BY post_id ORDER BY created_at DESC, id DESC) AS comment_rank
			FROM post_comments
			WHERE post_id IN ?
		) ranked
		WHERE comment_rank <= ?
		ORDER BY post_id, created_at`, postIDs, recentCommentsPerPost).
		Scan(&comments).Error
	if err != nil {
		r.logger.Warn("comment preview enrichment failed", zap.Error(err))
		return previews
	}

	commenterIDs := make([]string, 0, len(comments))
	for _, comment := range comments {
		commenterIDs = append(commenterIDs, comment.CustomerID)
	}
	names := r.resolveNames(ctx, shop, commenterIDs)

	for _, comment := range comments {
		previews[comment.PostID] = append(previews[comment.PostID], CommentPreview{
			CustomerID:  comment.CustomerID,
			DisplayName: names[comment.CustomerID],
			Body:        comment.Body,
			CreatedAt:   comment.CreatedAt,
		})
	}
	return previews
}

func (r *Reader) mediaDescriptors(ctx context.Context, postIDs []uint64) map[uint64][]MediaDescriptor {
	descriptors := make(map[uint64][]MediaDescriptor)
	if len(postIDs) == 0 {
		return descriptors
	}
	var rows []Media
	err := r.db.WithContext(ctx).
		Select("post_id, ordinal, key, mime").
		Where("post_id IN ?", postIDs).
		Order("post_id").
		Order("ordinal").
		Find(&rows).Error
	if err != nil {
		r.logger.Warn("media enrichment failed", zap.Error(err))
		return descriptors
	}
	for _, row := range rows {
		descriptors[row.PostID] = append(descriptors[row.PostID], MediaDescriptor{
			Key:     row.Key,
			Mime:    row.Mime,
			Ordinal: row.Ordinal,
		})
	}
	return descriptors
}

// resolveNames falls back to the raw customer id when no resolver is wired or
// the lookup fails.
func (r *Reader) resolveNames(ctx context.Context, shop string, customerIDs []string) map[string]string {
	names := make(map[string]string, len(customerIDs))
	for _, id := range customerIDs {
		names[id] = id
	}
	if r.names == nil || len(customerIDs) == 0 {
		return names
	}
	resolved, err := r.names.DisplayNames(ctx, shop, customerIDs)
	if err != nil {
		r.logger.Warn("display name enrichment failed", zap.Error(err))
		return names
	}
	for id, name := range resolved {
		if name != "" {
			names[id] = name
		}
	}
	return names
}
