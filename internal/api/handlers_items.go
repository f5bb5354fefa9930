package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"renit/internal/domain"
	"renit/internal/export"
	"renit/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.svc.Catalog.ListCategories(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (s *HTTPServer) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var category models.Category
	if err := decodeJSON(w, r, &category); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	category.ID = 0

	if err := s.svc.Catalog.CreateCategory(r.Context(), &category); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (s *HTTPServer) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	category, err := s.svc.Catalog.GetCategory(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func parseItemFilter(r *http.Request) (models.ItemFilter, error) {
	q := r.URL.Query()
	filter := models.ItemFilter{Search: strings.TrimSpace(q.Get("search"))}

	var err error
	if filter.CategoryID, err = queryInt64(r, "category_id"); err != nil {
		return filter, err
	}
	if filter.MinPriceCents, err = queryInt64(r, "min_price_cents"); err != nil {
		return filter, err
	}
	if filter.MaxPriceCents, err = queryInt64(r, "max_price_cents"); err != nil {
		return filter, err
	}
	if filter.OwnerID, err = queryInt64(r, "owner_id"); err != nil {
		return filter, err
	}

	if raw := strings.TrimSpace(q.Get("available")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, domain.InvalidInput("invalid available")
		}
		filter.Available = &v
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if raw := strings.TrimSpace(q.Get(name)); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return filter, domain.InvalidInput("invalid %s", name)
			}
			*dst = v
		}
	}
	return filter, nil
}

func (s *HTTPServer) handleListItems(w http.ResponseWriter, r *http.Request) {
	filter, err := parseItemFilter(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	items, err := s.svc.Catalog.ListItems(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type createItemRequest struct {
	CategoryID  *int64   `json:"category_id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Available   *bool    `json:"available,omitempty"`
	PriceCents  int64    `json:"price_cents"`
	PhotoURL    string   `json:"photo_url,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

func (s *HTTPServer) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	item := &models.Item{
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Available:   true,
		PriceCents:  req.PriceCents,
		PhotoURL:    req.PhotoURL,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	if req.Available != nil {
		item.Available = *req.Available
	}

	if err := s.svc.Catalog.CreateItem(r.Context(), actorFromContext(r.Context()), item); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *HTTPServer) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	item, err := s.svc.Catalog.GetItem(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var patch models.ItemPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	item, err := s.svc.Catalog.UpdateItem(r.Context(), actorFromContext(r.Context()), id, patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.svc.Catalog.DeleteItem(r.Context(), actorFromContext(r.Context()), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleItemBookings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	bookings, err := s.svc.Bookings.ListItemBookings(r.Context(), id, actorFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// handleExportBookings streams the item's bookings as an xlsx workbook to its owner.
func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	if s.svc.Exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "exports are not configured")
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	bookings, err := s.svc.Bookings.ListItemBookings(r.Context(), id, actorFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	item, err := s.svc.Catalog.GetItem(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	// Build the whole workbook before writing headers so a failure is still sent as JSON.
	book, err := s.svc.Exporter.Workbook(r.Context(), item, bookings)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer book.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(item.ID, time.Now())))
	w.WriteHeader(http.StatusOK)
	if err := book.Write(w); err != nil {
		s.log.Error().Err(err).Int64("item_id", item.ID).Msg("write export")
	}
}
