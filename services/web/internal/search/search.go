// Package search serves the read-only property search API. Only APPROVED
// listings are visible; everything else looks exactly like it does not exist.
package search

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/propertylane/propertylane/pkg/domain"
	"github.com/propertylane/propertylane/pkg/httpx"
	"github.com/propertylane/propertylane/services/web/internal/store"
)

type ListingReader interface {
	GetListing(ctx context.Context, addr domain.PropertyAddress) (store.Listing, error)
	QueryByCity(ctx context.Context, country, city string) ([]store.Listing, error)
	QueryByStreet(ctx context.Context, country, city, street string) ([]store.Listing, error)
}

type Handler struct {
	listings ListingReader
}

func NewHandler(listings ListingReader) *Handler {
	return &Handler{listings: listings}
}

func (h *Handler) SearchCity(w http.ResponseWriter, r *http.Request) {
	country := strings.TrimSpace(chi.URLParam(r, "country"))
	city := strings.TrimSpace(chi.URLParam(r, "city"))
	if country == "" || city == "" {
		httpx.WriteError(w, 400, "BAD_PATH", "country and city are required", nil)
		return
	}
	listings, err := h.listings.QueryByCity(r.Context(), country, city)
	if err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"listings": approvedOnly(listings)})
}

func (h *Handler) SearchStreet(w http.ResponseWriter, r *http.Request) {
	country := strings.TrimSpace(chi.URLParam(r, "country"))
	city := strings.TrimSpace(chi.URLParam(r, "city"))
	street := strings.TrimSpace(chi.URLParam(r, "street"))
	if country == "" || city == "" || street == "" {
		httpx.WriteError(w, 400, "BAD_PATH", "country, city and street are required", nil)
		return
	}
	listings, err := h.listings.QueryByStreet(r.Context(), country, city, street)
	if err != nil {
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"listings": approvedOnly(listings)})
}

// GetProperty resolves an exact address. Missing rows and rows that are not
// APPROVED share one response so the status of an unpublished listing cannot
// be probed.
func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	addr := domain.PropertyAddress{
		Country: strings.TrimSpace(chi.URLParam(r, "country")),
		City:    strings.TrimSpace(chi.URLParam(r, "city")),
		Street:  strings.TrimSpace(chi.URLParam(r, "street")),
		Number:  strings.TrimSpace(chi.URLParam(r, "number")),
	}
	if addr.Country == "" || addr.City == "" || addr.Street == "" || addr.Number == "" {
		httpx.WriteError(w, 400, "BAD_PATH", "country, city, street and number are required", nil)
		return
	}
	l, err := h.listings.GetListing(r.Context(), addr)
	if err != nil {
		if errors.Is(err, store.ErrListingNotFound) {
			writePropertyNotFound(w)
			return
		}
		httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
		return
	}
	if l.Status != domain.ListingStatusApproved {
		writePropertyNotFound(w)
		return
	}
	httpx.WriteJSON(w, 200, l)
}

func approvedOnly(listings []store.Listing) []store.Listing {
	approved := make([]store.Listing, 0, len(listings))
	for _, l := range listings {
		if l.Status == domain.ListingStatusApproved {
			approved = append(approved, l)
		}
	}
	return approved
}

func writePropertyNotFound(w http.ResponseWriter) {
	httpx.WriteError(w, 404, "PROPERTY_NOT_FOUND", "property not found", nil)
}
