package profiles

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("profiles: database handle is required")

// ServiceConfig bundles the profile service dependencies.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages profile rows and follow relationships, all shop-scoped.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the profile service.
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
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Ensure returns the profile for the customer, creating a default one on
// first sight.
func (s *Service) Ensure(ctx context.Context, shop, customerID string) (Profile, error) {
	var profile Profile
	err := s.db.WithContext(ctx).
		Where("shop = ? AND customer_id = ?", shop, customerID).
		Take(&profile).Error
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, err
	}

	profile = Profile{
		Shop:        shop,
		CustomerID:  customerID,
		DisplayName: DefaultDisplayName(customerID),
	}
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		return Profile{}, err
	}
	s.logger.Info("profile created",
		zap.String("shop", shop),
		zap.String("customer_id", customerID))
	return profile, nil
}

// Get fetches a profile without creating it.
func (s *Service) Get(ctx context.Context, shop, customerID string) (Profile, error) {
	var profile Profile
	err := s.db.WithContext(ctx).
		Where("shop = ? AND customer_id = ?", shop, customerID).
		Take(&profile).Error
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// Update overwrites the editable profile fields.
func (s *Service) Update(ctx context.Context, shop, customerID, displayName, bio string) (Profile, error) {
	displayName = strings.TrimSpace(displayName)
	bio = strings.TrimSpace(bio)
	if len(displayName) > maxDisplayNameLength {
		return Profile{}, ErrDisplayNameTooLong
	}
	if len(bio) > maxBioLength {
		return Profile{}, ErrBioTooLong
	}

	_, err := s.Ensure(ctx, shop, customerID)
	if err != nil {
		return Profile{}, err
	}
	updates := map[string]interface{}{"bio": bio}
	if displayName != "" {
		updates["display_name"] = displayName
	}
	err = s.db.WithContext(ctx).
		Model(&Profile{}).
		Where("shop = ? AND customer_id = ?", shop, customerID).
		Updates(updates).Error
	if err != nil {
		return Profile{}, err
	}
	return s.Get(ctx, shop, customerID)
}

// DisplayNames resolves display names for a batch of customer ids. Customers
// never seen before simply stay absent from the result. Tolerates an empty
// id list without issuing a query.
func (s *Service) DisplayNames(ctx context.Context, shop string, customerIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(customerIDs))
	if len(customerIDs) == 0 {
		return names, nil
	}
	var rows []Profile
	err := s.db.WithContext(ctx).
		Select("customer_id, display_name").
		Where("shop = ? AND customer_id IN ?", shop, customerIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		names[row.CustomerID] = row.DisplayName
	}
	return names, nil
}

// ToggleFollow flips the follow edge and reports the resulting state, using
// the same explicit check-then-write transaction shape as like toggling.
func (s *Service) ToggleFollow(ctx context.Context, shop, followerID, followeeID string) (bool, error) {
	if followerID == followeeID {
		return false, ErrSelfFollow
	}
	following := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Follow
		err := tx.Where("shop = ? AND follower_id = ? AND followee_id = ?",
			shop, followerID, followeeID).
			Take(&existing).Error
		if err == nil {
			return tx.Delete(&existing).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		following = true
		return tx.Create(&Follow{
			Shop:       shop,
			FollowerID: followerID,
			FolloweeID: followeeID,
			CreatedAt:  s.clock().UTC(),
		}).Error
	})
	if err != nil {
		return false, err
	}
	return following, nil
}

// IsFollowing reports whether follower currently follows followee.
func (s *Service) IsFollowing(ctx context.Context, shop, followerID, followeeID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Follow{}).
		Where("shop = ? AND follower_id = ? AND followee_id = ?", shop, followerID, followeeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Counts returns follower and following totals for a profile page.
func (s *Service) Counts(ctx context.Context, shop, customerID string) (FollowCounts, error) {
	var counts FollowCounts
	err := s.db.WithContext(ctx).
		Model(&Follow{}).
		Where("shop = ? AND followee_id = ?", shop, customerID).
		Count(&counts.Followers).Error
	if err != nil {
		return FollowCounts{}, err
	}
	err = s.db.WithContext(ctx).
		Model(&Follow{}).
		Where("shop = ? AND follower_id = ?", shop, customerID).
		Count(&counts.Following).Error
	if err != nil {
		return FollowCounts{}, err
	}
	return counts, nil
}

// DefaultDisplayName keeps new profiles presentable without leaking the whole
// upstream id.
func DefaultDisplayName(customerID string) string {
	suffix := customerID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return "customer-" + suffix
}
