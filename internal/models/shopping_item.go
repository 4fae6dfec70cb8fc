package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShoppingItem is free text owned by a user. It keeps no link to the recipe it
// may have been copied from.
type ShoppingItem struct {
	ID        uuid.UUID `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID    uuid.UUID `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Item      string    `gorm:"size:255;not null" json:"item"`
	IsChecked bool      `gorm:"not null;default:false" json:"is_checked"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *ShoppingItem) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
