package database

import (
	"context"
	"testing"

	"renit/internal/domain"
	"renit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")

	lat := 55.75
	item := &models.Item{
		OwnerID:     owner.ID,
		Title:       "Projector",
		Description: "Full HD",
		Location:    "Moscow",
		Available:   true,
		PriceCents:  3000,
		Latitude:    &lat,
	}
	require.NoError(t, db.CreateItem(ctx, item))
	require.NotZero(t, item.ID)

	got, err := db.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Projector", got.Title)
	assert.True(t, got.Available)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, 55.75, *got.Latitude, 1e-9)
	assert.Nil(t, got.Longitude)
	assert.Nil(t, got.CategoryID)

	got.Available = false
	got.PriceCents = 3500
	require.NoError(t, db.UpdateItem(ctx, got))

	got, err = db.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, got.Available)
	assert.Equal(t, int64(3500), got.PriceCents)

	require.NoError(t, db.DeleteItem(ctx, item.ID))
	_, err = db.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, db.DeleteItem(ctx, item.ID), domain.ErrNotFound)
	assert.ErrorIs(t, db.UpdateItem(ctx, item), domain.ErrNotFound)
}

func TestCreateItem_Validation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "owner")

	err := db.CreateItem(ctx, &models.Item{OwnerID: owner.ID, Title: "x", PriceCents: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = db.CreateItem(ctx, &models.Item{OwnerID: 12345, Title: "x", PriceCents: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListItems_Filters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	tools := &models.Category{Name: "Tools"}
	require.NoError(t, db.CreateCategory(ctx, tools))

	drill := &models.Item{OwnerID: alice.ID, CategoryID: &tools.ID, Title: "Power drill", Available: true, PriceCents: 800}
	saw := &models.Item{OwnerID: alice.ID, CategoryID: &tools.ID, Title: "Circular saw", Description: "100% safe", Available: false, PriceCents: 1200}
	tent := &models.Item{OwnerID: bob.ID, Title: "Tent", Description: "for 4 people", Available: true, PriceCents: 2000}
	for _, it := range []*models.Item{drill, saw, tent} {
		require.NoError(t, db.CreateItem(ctx, it))
	}

	ids := func(items []*models.Item) []int64 {
		out := make([]int64, 0, len(items))
		for _, it := range items {
			out = append(out, it.ID)
		}
		return out
	}
	ptr := func(v int64) *int64 { return &v }
	yes := true

	tests := []struct {
		name   string
		filter models.ItemFilter
		want   []int64
	}{
		{"All", models.ItemFilter{}, []int64{drill.ID, saw.ID, tent.ID}},
		{"SearchTitleCaseInsensitive", models.ItemFilter{Search: "DRILL"}, []int64{drill.ID}},
		{"SearchDescription", models.ItemFilter{Search: "people"}, []int64{tent.ID}},
		{"SearchPercentIsLiteral", models.ItemFilter{Search: "100%"}, []int64{saw.ID}},
		{"Category", models.ItemFilter{CategoryID: &tools.ID}, []int64{drill.ID, saw.ID}},
		{"PriceRange", models.ItemFilter{MinPriceCents: ptr(1000), MaxPriceCents: ptr(2000)}, []int64{saw.ID, tent.ID}},
		{"Available", models.ItemFilter{Available: &yes}, []int64{drill.ID, tent.ID}},
		{"Owner", models.ItemFilter{OwnerID: &bob.ID}, []int64{tent.ID}},
		{"LimitOffset", models.ItemFilter{Limit: 1, Offset: 1}, []int64{saw.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := db.ListItems(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(items))
		})
	}
}

func TestCategories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	sports := &models.Category{Name: "Sports", Description: "Bikes and boards"}
	audio := &models.Category{Name: "Audio"}
	require.NoError(t, db.CreateCategory(ctx, sports))
	require.NoError(t, db.CreateCategory(ctx, audio))

	err := db.CreateCategory(ctx, &models.Category{Name: "Sports"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	got, err := db.GetCategory(ctx, sports.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bikes and boards", got.Description)

	_, err = db.GetCategory(ctx, 777)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := db.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Audio", list[0].Name)
	assert.Equal(t, "Sports", list[1].Name)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}
