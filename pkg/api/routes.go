package api

import (
	"github.com/gorilla/mux"
)

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/listing/search_result", s.HandleSearch).Methods("GET").Name("api_listing_search_result")
	r.HandleFunc("/api/stats", s.HandleStats).Methods("GET").Name("api_stats")
	r.HandleFunc("/health", s.HandleHealth).Methods("GET").Name("health")
}
