package repository

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// userDirectoryRow mirrors the notifiable email address for a user id. The
// engine has no identity master data of its own (§1 Non-goals exclude
// authentication/token issuance); this is the narrow read view
// events.EmailSink needs to notify a newly-assigned approver.
type userDirectoryRow struct {
	UserID      string `gorm:"column:user_id;primaryKey;size:64"`
	Email       string `gorm:"column:email;size:255"`
	SoftDeleted bool   `gorm:"column:soft_deleted;default:false;index"`
}

func (userDirectoryRow) TableName() string { return "bte.user_directory" }

// GormUserDirectory implements events.UserDirectory over the mirror table
// above.
type GormUserDirectory struct {
	repo *Repository[userDirectoryRow]
	log  zerolog.Logger
}

// NewGormUserDirectory builds a GormUserDirectory.
func NewGormUserDirectory(db *gorm.DB, log zerolog.Logger) *GormUserDirectory {
	return &GormUserDirectory{
		repo: NewRepository[userDirectoryRow](db),
		log:  log.With().Str("component", "repository.GormUserDirectory").Logger(),
	}
}

// Email looks up the notifiable address for userID.
func (d *GormUserDirectory) Email(ctx context.Context, userID string) (string, bool) {
	row, err := d.repo.GetByStringID(ctx, "user_id", userID)
	if err != nil {
		d.log.Warn().Err(err).Str("user_id", userID).Msg("user directory lookup failed")
		return "", false
	}
	if row == nil || row.Email == "" {
		return "", false
	}
	return row.Email, true
}
