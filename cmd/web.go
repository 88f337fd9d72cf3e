package cmd

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rubiojr/roost/pkg/api"
	"github.com/rubiojr/roost/pkg/config"
	"github.com/rubiojr/roost/pkg/currency"
	"github.com/rubiojr/roost/pkg/i18n"
	"github.com/rubiojr/roost/pkg/imagecache"
	"github.com/rubiojr/roost/pkg/log"
	"github.com/rubiojr/roost/pkg/marker"
	"github.com/rubiojr/roost/pkg/search"
	"github.com/rubiojr/roost/pkg/session"
	"github.com/rubiojr/roost/pkg/shared"
	"github.com/rubiojr/roost/pkg/storage"
	"github.com/urfave/cli/v3"
)

//go:embed web/static/*
var staticFS embed.FS

var webLogger = log.ForService("web")

// sessionGCInterval is how often expired sessions are purged.
const sessionGCInterval = time.Hour

// WebCommand creates the web command serving the HTML pages and the API
func WebCommand() *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Start the listing search web server and JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on (overrides the config file)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return startWebServer(ctx, c.String("config"), c.String("listen"))
		},
	}
}

// WebServer holds the server configuration and dependencies
type WebServer struct {
	config     *config.Config
	store      *storage.Store
	translator *i18n.Translator
	converter  *currency.Converter
	images     *imagecache.Cache
	sessions   *session.Store
	markers    *marker.Builder
	markerOpts marker.Options
	search     *shared.ListingSearch
	apiServer  *api.Server
	router     *mux.Router
	sanitizer  *bluemonday.Policy
}

// newWebServer wires every collaborator of the web server around store.
func newWebServer(cfg *config.Config, store *storage.Store) (*WebServer, error) {
	translator, err := i18n.New(cfg.DefaultLocale, cfg.Locales)
	if err != nil {
		return nil, fmt.Errorf("loading translations: %w", err)
	}

	converter, err := newConverter(cfg)
	if err != nil {
		return nil, err
	}

	filters := make(map[string]imagecache.Filter, len(cfg.Images.Filters))
	for name, f := range cfg.Images.Filters {
		filters[name] = imagecache.Filter{Width: f.Width, Height: f.Height}
	}
	images := imagecache.New(cfg.Images.PublicDir, cfg.Images.CacheDir, filters)

	secret := cfg.Session.Secret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return nil, err
		}
		webLogger.Warnf("no session secret configured, sessions will not survive a restart (set ROOST_SESSION_SECRET)")
	}
	sessions, err := session.NewStore(store.DB(), session.Options{
		Secret: secret,
		TTL:    cfg.Session.TTL.Duration,
		Cookie: cfg.Session.Cookie,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	s := &WebServer{
		config:     cfg,
		store:      store,
		translator: translator,
		converter:  converter,
		images:     images,
		sessions:   sessions,
		router:     mux.NewRouter(),
		sanitizer:  bluemonday.UGCPolicy(),
		markerOpts: marker.Options{
			FallbackLocale: cfg.DefaultLocale,
			ImageFolder:    cfg.Images.Folder,
			DefaultImage:   cfg.Images.DefaultImage,
			ImageFilter:    config.DefaultImageFilter,
		},
	}
	s.registerRoutes()

	route, err := s.router.Get("listing_search_result").URL()
	if err != nil {
		return nil, err
	}
	s.markers = marker.NewBuilder(images, converter, s)
	s.search = shared.NewListingSearch(
		search.NewManager(store),
		s.markers,
		search.Defaults{MaxPerPage: cfg.MaxPerPage, Limit: config.MaxMaxPerPage},
		s.markerOpts,
		route.Path,
	)
	s.apiServer = api.NewServer(s.search, translator, store, converter)
	s.apiServer.RegisterRoutes(s.router)

	return s, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *WebServer) registerRoutes() {
	r := s.router

	r.HandleFunc("/", s.handleHome).Methods("GET").Name("home")
	r.HandleFunc("/listing/search_result", s.handleSearchResult).Methods("GET").Name("listing_search_result")
	r.HandleFunc("/listing/similar_result/{id:[0-9]+}", s.handleSimilarResult).Methods("GET").Name("listing_similar_result")
	r.HandleFunc("/fragments/search_home_form", s.handleSearchHomeForm).Methods("GET").Name("listing_search_home_form")
	r.HandleFunc("/fragments/search_form", s.handleSearchForm).Methods("GET").Name("listing_search_form")
	r.HandleFunc("/fragments/search_result_form", s.handleSearchResultForm).Methods("GET").Name("listing_search_result_form")
	// Registered after the fixed /listing/ paths so they win.
	r.HandleFunc("/listing/{slug}", s.handleListing).Methods("GET").Name("listing_show")
	r.HandleFunc("/currency/{code}", s.handleCurrencySwitch).Methods("GET").Name("currency_switch")

	r.HandleFunc(imagecache.ResolvePrefix+"/{filter}/{path:.+}", s.handleImageResolve).Methods("GET").Name("image_resolve")
	r.PathPrefix(imagecache.CachePrefix + "/").Handler(
		http.StripPrefix(imagecache.CachePrefix+"/", http.FileServer(http.Dir(s.images.CacheDir()))))
	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(filepath.Join(s.config.Images.PublicDir, "uploads")))))
	r.PathPrefix("/static/").HandlerFunc(s.handleStatic)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, http.StatusNotFound, "error.not_found")
	})
}

// Handler returns the router wrapped in the request middlewares.
func (s *WebServer) Handler() http.Handler {
	var h http.Handler = s.router
	h = s.sessions.Middleware(h)
	h = s.translator.Middleware(h)
	h = api.CorsMiddleware(h)
	h = gzhttp.GzipHandler(h)
	return logRequests(h)
}

// ListingURL returns the path of the listing page for slug.
func (s *WebServer) ListingURL(slug string) string {
	u, err := s.router.Get("listing_show").URL("slug", slug)
	if err != nil {
		return ""
	}
	return u.Path
}

// startWebServer starts the web server with both API and UI
func startWebServer(ctx context.Context, configPath, listen string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if listen != "" {
		cfg.Listen = listen
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			webLogger.Warnf("failed to close store: %v", err)
		}
	}()

	webServer, err := newWebServer(cfg, store)
	if err != nil {
		return err
	}

	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()
	if cfg.Currency.RatesFile != "" {
		if err := webServer.converter.Watch(bgCtx, cfg.Currency.RatesFile); err != nil {
			webLogger.Warnf("rates file will not be reloaded: %v", err)
		}
	}
	go webServer.sessions.RunGC(bgCtx, sessionGCInterval)

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           webServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		webLogger.Infof("Starting web server on http://%s", cfg.Listen)
		webLogger.Infof("Available endpoints:")
		webLogger.Infof("  GET / - Home page with the search form")
		webLogger.Infof("  GET /listing/search_result - Listing search results and map")
		webLogger.Infof("  GET /listing/similar_result/{id} - Other results of the last search")
		webLogger.Infof("  GET /listing/{slug} - Listing page")
		webLogger.Infof("  GET /fragments/search_home_form, /fragments/search_form, /fragments/search_result_form")
		webLogger.Infof("  GET /currency/{code} - Switch the display currency")
		webLogger.Infof("  GET /api/listing/search_result - Listing search as JSON")
		webLogger.Infof("  GET /api/stats - Database statistics")
		webLogger.Infof("  GET /health - Health check")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("web server failed: %w", err)
	}

	webLogger.Infof("Shutting down web server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func (s *WebServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	filePath := "web/static/" + strings.TrimPrefix(path, "/static/")

	content, err := staticFS.ReadFile(filePath)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if strings.HasSuffix(path, ".css") {
		w.Header().Set("Content-Type", "text/css")
	} else if strings.HasSuffix(path, ".js") {
		w.Header().Set("Content-Type", "application/javascript")
	} else if strings.HasSuffix(path, ".png") {
		w.Header().Set("Content-Type", "image/png")
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")

	if _, err := w.Write(content); err != nil {
		webLogger.Errorf("Error writing static content: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		webLogger.Debugf("%s %s %d %s", r.Method, r.URL.RequestURI(), rec.status, time.Since(start).Round(time.Microsecond))
	})
}
