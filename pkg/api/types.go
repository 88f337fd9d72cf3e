package api

import (
	"time"

	"github.com/rubiojr/roost/pkg/marker"
	"github.com/rubiojr/roost/pkg/pagination"
	"github.com/rubiojr/roost/pkg/search"
)

type ListingResponse struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Slug          string   `json:"slug"`
	Price         string   `json:"price"`
	AverageRating float64  `json:"average_rating"`
	Certified     bool     `json:"certified"`
	City          string   `json:"city"`
	Country       string   `json:"country"`
	Lat           float64  `json:"lat"`
	Lng           float64  `json:"lng"`
	Categories    []string `json:"categories"`
	Image         string   `json:"image"`
	URL           string   `json:"url"`
}

type SearchResponse struct {
	Request    search.Request        `json:"listing_search_request"`
	Results    []ListingResponse     `json:"results"`
	NbResults  int                   `json:"nb_results"`
	Markers    []marker.Marker       `json:"markers"`
	Pagination pagination.Pagination `json:"pagination"`
	Locale     string                `json:"locale"`
	Currency   string                `json:"currency"`
}

type FieldErrorResponse struct {
	Field   string `json:"field"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Error  string               `json:"error"`
	Errors []FieldErrorResponse `json:"errors"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
