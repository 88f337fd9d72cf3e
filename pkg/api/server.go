package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rubiojr/roost/pkg/i18n"
	"github.com/rubiojr/roost/pkg/log"
	"github.com/rubiojr/roost/pkg/shared"
	"github.com/rubiojr/roost/pkg/storage"
)

var logger = log.ForService("api")

// StatsSource reports database counts.
type StatsSource interface {
	Stats(ctx context.Context) (*storage.Stats, error)
}

type Server struct {
	search     *shared.ListingSearch
	translator *i18n.Translator
	stats      StatsSource
	currencies CurrencySource
}

// CurrencySource resolves the display currency of a request.
type CurrencySource interface {
	Default() string
	IsSupported(code string) bool
}

func NewServer(search *shared.ListingSearch, translator *i18n.Translator, stats StatsSource, currencies CurrencySource) *Server {
	return &Server{
		search:     search,
		translator: translator,
		stats:      stats,
		currencies: currencies,
	}
}

// writeJSON encodes data before writing the status. Encoding failures
// are answered with a 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		logger.Errorf("encoding JSON response: %v", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Internal error","message":"response could not be encoded"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		logger.Debugf("writing JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
