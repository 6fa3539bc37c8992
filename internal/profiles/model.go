package profiles

import (
	"errors"
	"time"
)

const (
	maxDisplayNameLength = 80
	maxBioLength         = 500
)

var (
	// ErrDisplayNameTooLong indicates a display name beyond the storage bound.
	ErrDisplayNameTooLong = errors.New("profiles: display name exceeds 80 characters")
	// ErrBioTooLong indicates a bio beyond the storage bound.
	ErrBioTooLong = errors.New("profiles: bio exceeds 500 characters")
	// ErrSelfFollow indicates a customer attempting to follow themselves.
	ErrSelfFollow = errors.New("profiles: cannot follow yourself")
)

// Profile is the local extension of an upstream customer identity. Identity
// always originates upstream; this row is a cache created lazily on first
// sight and never authoritative.
type Profile struct {
	Shop        string    `gorm:"column:shop;primaryKey;size:190;not null"`
	CustomerID  string    `gorm:"column:customer_id;primaryKey;size:190;not null"`
	DisplayName string    `gorm:"column:display_name;size:190;not null"`
	Bio         string    `gorm:"column:bio;type:text;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Profile) TableName() string {
	return "customer_profiles"
}

// Follow is a join row; presence means follower follows followee.
type Follow struct {
	Shop       string    `gorm:"column:shop;primaryKey;size:190;not null"`
	FollowerID string    `gorm:"column:follower_id;primaryKey;size:190;not null"`
	FolloweeID string    `gorm:"column:followee_id;primaryKey;size:190;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Follow) TableName() string {
	return "customer_follows"
}

// FollowCounts aggregates both directions for a profile page.
type FollowCounts struct {
	Followers int64
	Following int64
}
