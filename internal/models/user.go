package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User holds credentials and the dietary profile used to personalise generation.
// Users are never hard-deleted; Disabled blocks login and token use.
type User struct {
	ID                 uuid.UUID        `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	Name               string           `gorm:"size:100;not null" json:"name"`
	Email              string           `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash       string           `gorm:"not null" json:"-"`
	DietaryType        string           `gorm:"size:50" json:"dietary_type"`
	Allergies          JSONBStringArray `gorm:"type:jsonb;not null;default:'[]'" json:"allergies"`
	CuisinePreferences JSONBStringArray `gorm:"type:jsonb;not null;default:'[]'" json:"cuisine_preferences"`
	SpiceLevel         int              `gorm:"not null;default:2;check:spice_level >= 1 AND spice_level <= 5" json:"spice_level"`
	Disabled           bool             `gorm:"not null;default:false" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.SpiceLevel == 0 {
		u.SpiceLevel = DefaultSpiceLevel
	}
	return nil
}

const DefaultSpiceLevel = 2

// DietaryTypes lists the accepted values for User.DietaryType. Empty means none.
var DietaryTypes = []string{
	"vegetarian",
	"vegan",
	"pescatarian",
	"keto",
	"paleo",
	"gluten_free",
	"dairy_free",
	"halal",
	"kosher",
}
