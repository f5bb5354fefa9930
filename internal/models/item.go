package models

import "time"

type Item struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	CategoryID  *int64    `json:"category_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Available   bool      `json:"available"`
	PriceCents  int64     `json:"price_cents"` // nightly rate
	PhotoURL    string    `json:"photo_url,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ItemFilter narrows item listings. Zero values mean "no filter".
type ItemFilter struct {
	Search        string
	CategoryID    *int64
	MinPriceCents *int64
	MaxPriceCents *int64
	Available     *bool
	OwnerID       *int64
	Limit         int
	Offset        int
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ItemPatch carries the fields of a partial item update; nil means unchanged.
type ItemPatch struct {
	CategoryID  *int64   `json:"category_id,omitempty"`
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Location    *string  `json:"location,omitempty"`
	Available   *bool    `json:"available,omitempty"`
	PriceCents  *int64   `json:"price_cents,omitempty"`
	PhotoURL    *string  `json:"photo_url,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// Apply copies the set fields onto the item.
func (p ItemPatch) Apply(item *Item) {
	if p.CategoryID != nil {
		item.CategoryID = p.CategoryID
	}
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Location != nil {
		item.Location = *p.Location
	}
	if p.Available != nil {
		item.Available = *p.Available
	}
	if p.PriceCents != nil {
		item.PriceCents = *p.PriceCents
	}
	if p.PhotoURL != nil {
		item.PhotoURL = *p.PhotoURL
	}
	if p.Latitude != nil {
		item.Latitude = p.Latitude
	}
	if p.Longitude != nil {
		item.Longitude = p.Longitude
	}
}
