package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Load returns the catalog, fetching it on first successful use.
	Load(ctx context.Context) ([]FoodItem, error)
	Lookup(ctx context.Context, name string) (FoodItem, error)
	Names(ctx context.Context) ([]string, error)
}

var (
	ErrDataUnavailable = errors.New("data_unavailable")
	ErrFoodNotFound    = errors.New("food_not_found")
	ErrInvalidName     = errors.New("invalid_food_name")
)
