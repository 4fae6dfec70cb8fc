package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pageza/recipe-lens/backend/internal/models"
)

const maxShoppingItemLength = 255

// ShoppingService manages each user's free-text shopping list. Items owned by
// other users are reported as not found.
type ShoppingService struct {
	db *gorm.DB
}

func NewShoppingService(db *gorm.DB) *ShoppingService {
	return &ShoppingService{db: db}
}

// List returns unchecked items first, then by creation time.
func (s *ShoppingService) List(ctx context.Context, user uuid.UUID) ([]*models.ShoppingItem, error) {
	var items []*models.ShoppingItem
	err := s.db.WithContext(ctx).
		Where("user_id = ?", user).
		Order("is_checked ASC").
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("listing shopping items: %w", err)
	}
	return items, nil
}

func (s *ShoppingService) AddItem(ctx context.Context, user uuid.UUID, text string) (*models.ShoppingItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("item", "must not be blank")
	}
	if utf8.RuneCountInString(text) > maxShoppingItemLength {
		return nil, invalid("item", fmt.Sprintf("must be at most %d characters", maxShoppingItemLength))
	}

	item := &models.ShoppingItem{UserID: user, Item: text}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("adding shopping item: %w", err)
	}
	return item, nil
}

// Toggle flips the checked flag.
func (s *ShoppingService) Toggle(ctx context.Context, user, itemID uuid.UUID) (*models.ShoppingItem, error) {
	var item models.ShoppingItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", itemID, user).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("loading shopping item: %w", err)
		}
		item.IsChecked = !item.IsChecked
		return tx.Model(&item).Update("is_checked", item.IsChecked).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *ShoppingService) Delete(ctx context.Context, user, itemID uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, user).Delete(&models.ShoppingItem{})
	if res.Error != nil {
		return fmt.Errorf("deleting shopping item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddFromRecipe copies every ingredient of a visible recipe onto the list as
// unchecked items, all or nothing.
func (s *ShoppingService) AddFromRecipe(ctx context.Context, user, recipeID uuid.UUID) ([]*models.ShoppingItem, error) {
	var items []*models.ShoppingItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := visibleRecipe(tx, recipeID, user)
		if err != nil {
			return err
		}

		for _, ingredient := range recipe.Ingredients {
			ingredient = strings.TrimSpace(ingredient)
			if ingredient == "" {
				continue
			}
			if r := []rune(ingredient); len(r) > maxShoppingItemLength {
				ingredient = string(r[:maxShoppingItemLength])
			}
			items = append(items, &models.ShoppingItem{UserID: user, Item: ingredient})
		}
		if len(items) == 0 {
			return nil
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("adding shopping items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ClearChecked deletes checked items and returns how many were removed.
func (s *ShoppingService) ClearChecked(ctx context.Context, user uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ? AND is_checked = ?", user, true).Delete(&models.ShoppingItem{})
	if res.Error != nil {
		return 0, fmt.Errorf("clearing checked items: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *ShoppingService) ClearAll(ctx context.Context, user uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", user).Delete(&models.ShoppingItem{})
	if res.Error != nil {
		return 0, fmt.Errorf("clearing shopping list: %w", res.Error)
	}
	return res.RowsAffected, nil
}
