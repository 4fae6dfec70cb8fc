package testhelpers

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/pageza/recipe-lens/backend/internal/models"
)

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "password123"

// CreateUser inserts a user with TestPassword.
func CreateUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &models.User{
		Name:         strings.Split(email, "@")[0],
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// CreateRecipe inserts a recipe owned by owner.
func CreateRecipe(t *testing.T, db *gorm.DB, owner *models.User, public bool) *models.Recipe {
	t.Helper()

	recipe := &models.Recipe{
		UserID:       owner.ID,
		Title:        "Tomato Soup",
		Ingredients:  models.JSONBStringArray{"4 tomatoes", "1 onion", "salt"},
		Instructions: models.JSONBStringArray{"Chop everything.", "Simmer for 20 minutes."},
		IsPublic:     public,
	}
	if err := db.Create(recipe).Error; err != nil {
		t.Fatalf("failed to create recipe: %v", err)
	}
	return recipe
}
