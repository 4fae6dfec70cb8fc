package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Recipe is a saved generation owned by a single user. AverageRating and
// RatingCount are recomputed from the ratings table on every rating write.
type Recipe struct {
	ID            uuid.UUID        `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt     time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	UserID        uuid.UUID        `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Title         string           `gorm:"size:255;not null" json:"title"`
	Ingredients   JSONBStringArray `gorm:"type:jsonb;not null;default:'[]'" json:"ingredients"`
	Instructions  JSONBStringArray `gorm:"type:jsonb;not null;default:'[]'" json:"instructions"`
	ImageURL      *string          `gorm:"type:text" json:"image_url"`
	IsPublic      bool             `gorm:"not null;default:false" json:"is_public"`
	AverageRating *float64         `json:"average_rating"`
	RatingCount   int              `gorm:"not null;default:0" json:"rating_count"`
}

func (r *Recipe) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// VisibleTo reports whether viewer may read the recipe.
func (r *Recipe) VisibleTo(viewer uuid.UUID) bool {
	return r.IsPublic || r.UserID == viewer
}
