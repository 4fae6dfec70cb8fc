// Package models holds the gorm models persisted by the service.
package models

// All returns every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Recipe{},
		&Rating{},
		&Favorite{},
		&ShoppingItem{},
	}
}
