package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rubiojr/roost/pkg/i18n"
	"github.com/rubiojr/roost/pkg/marker"
	"github.com/rubiojr/roost/pkg/session"
	"github.com/rubiojr/roost/pkg/version"
)

func (s *Server) locale(r *http.Request) string {
	if locale := i18n.LocaleFromContext(r.Context()); locale != "" {
		return locale
	}
	return s.translator.Fallback()
}

// currency picks the ?currency parameter, then the session currency.
func (s *Server) currency(r *http.Request) string {
	if code := strings.ToUpper(r.URL.Query().Get("currency")); code != "" && s.currencies.IsSupported(code) {
		return code
	}
	return session.FromContext(r.Context()).Currency(s.currencies.Default())
}

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	locale := s.locale(r)
	currency := s.currency(r)

	page, err := s.search.Run(r.Context(), r.URL.Query(), locale, currency)
	if err != nil {
		logger.Errorf("search: %v", err)
		s.writeError(w, http.StatusInternalServerError, "Search failed", s.translator.Trans("error.internal", nil, locale))
		return
	}

	if len(page.Errors) > 0 {
		resp := ValidationErrorResponse{Error: "Invalid search"}
		for _, fe := range page.Errors {
			resp.Errors = append(resp.Errors, FieldErrorResponse{
				Field:   fe.Field,
				Key:     fe.Key,
				Message: s.translator.Trans(fe.Key, fe.Params, locale),
			})
		}
		s.writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	byID := make(map[int64]marker.Marker, len(page.Markers))
	for _, m := range page.Markers {
		byID[m.ID] = m
	}

	results := make([]ListingResponse, 0, len(page.Results))
	for _, l := range page.Results {
		tr, _ := l.Translation(locale, s.translator.Fallback())
		m := byID[l.ID]
		categories := make([]string, 0, len(l.Categories))
		for _, c := range l.Categories {
			categories = append(categories, c.Name(locale, s.translator.Fallback()))
		}
		results = append(results, ListingResponse{
			ID:            l.ID,
			Title:         tr.Title,
			Slug:          tr.Slug,
			Price:         m.Price,
			AverageRating: l.AverageRating,
			Certified:     l.Certified,
			City:          l.Location.City,
			Country:       l.Location.Country,
			Lat:           l.Location.Coordinate.Lat,
			Lng:           l.Location.Coordinate.Lng,
			Categories:    categories,
			Image:         m.Image,
			URL:           m.URL,
		})
	}

	s.writeJSON(w, http.StatusOK, SearchResponse{
		Request:    page.Request,
		Results:    results,
		NbResults:  page.NbResults,
		Markers:    page.Markers,
		Pagination: page.Pagination,
		Locale:     locale,
		Currency:   currency,
	})
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to get stats", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}
