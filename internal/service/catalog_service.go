package service

import (
	"context"
	"fmt"
	"strings"

	"renit/internal/domain"
	"renit/internal/models"

	"github.com/rs/zerolog"
)

// CatalogService manages items and categories.
type CatalogService struct {
	items      domain.ItemStore
	categories domain.CategoryStore
	bookings   domain.BookingStore
	logger     *zerolog.Logger
}

func NewCatalogService(items domain.ItemStore, categories domain.CategoryStore, bookings domain.BookingStore, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{
		items:      items,
		categories: categories,
		bookings:   bookings,
		logger:     logger,
	}
}

func (s *CatalogService) validateItem(ctx context.Context, item *models.Item) error {
	item.Title = strings.TrimSpace(item.Title)
	if item.Title == "" {
		return domain.InvalidInput("title is required")
	}
	if item.PriceCents < 0 {
		return domain.InvalidInput("price must not be negative")
	}
	if item.Latitude != nil && (*item.Latitude < -90 || *item.Latitude > 90) {
		return domain.InvalidInput("latitude out of range")
	}
	if item.Longitude != nil && (*item.Longitude < -180 || *item.Longitude > 180) {
		return domain.InvalidInput("longitude out of range")
	}
	if item.CategoryID != nil {
		if _, err := s.categories.GetCategory(ctx, *item.CategoryID); err != nil {
			return err
		}
	}
	return nil
}

// CreateItem lists a new item owned by the actor.
func (s *CatalogService) CreateItem(ctx context.Context, actorID int64, item *models.Item) error {
	item.OwnerID = actorID
	if err := s.validateItem(ctx, item); err != nil {
		return err
	}
	if err := s.items.CreateItem(ctx, item); err != nil {
		return err
	}
	s.logger.Info().Int64("item_id", item.ID).Int64("owner_id", actorID).Msg("item created")
	return nil
}

func (s *CatalogService) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	return s.items.GetItem(ctx, id)
}

func (s *CatalogService) ListItems(ctx context.Context, filter models.ItemFilter) ([]*models.Item, error) {
	if filter.MinPriceCents != nil && filter.MaxPriceCents != nil && *filter.MinPriceCents > *filter.MaxPriceCents {
		return nil, domain.InvalidInput("min_price is greater than max_price")
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, domain.InvalidInput("limit and offset must not be negative")
	}
	return s.items.ListItems(ctx, filter)
}

// UpdateItem applies a partial update. Owner only.
func (s *CatalogService) UpdateItem(ctx context.Context, actorID, itemID int64, patch models.ItemPatch) (*models.Item, error) {
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != actorID {
		return nil, domain.ErrForbidden
	}

	patch.Apply(item)
	if err := s.validateItem(ctx, item); err != nil {
		return nil, err
	}
	if err := s.items.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes an item with no active bookings. Owner only.
func (s *CatalogService) DeleteItem(ctx context.Context, actorID, itemID int64) error {
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.OwnerID != actorID {
		return domain.ErrForbidden
	}

	active, err := s.bookings.FindActiveBookings(ctx, itemID, 0)
	if err != nil {
		return err
	}
	if len(active) > 0 {
		return fmt.Errorf("item %d has %d active bookings: %w", itemID, len(active), domain.ErrInvalidTransition)
	}

	if err := s.items.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	s.logger.Info().Int64("item_id", itemID).Int64("owner_id", actorID).Msg("item deleted")
	return nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, category *models.Category) error {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return domain.InvalidInput("category name is required")
	}
	return s.categories.CreateCategory(ctx, category)
}

func (s *CatalogService) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	return s.categories.GetCategory(ctx, id)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return s.categories.ListCategories(ctx)
}
