package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/liamcoop/healthpro/assessment"
	"github.com/liamcoop/healthpro/internal/config"
	"github.com/liamcoop/healthpro/internal/database"
	"github.com/liamcoop/healthpro/internal/logger"
	"github.com/liamcoop/healthpro/internal/telemetry"
	"github.com/liamcoop/healthpro/narrative"
	"github.com/liamcoop/healthpro/norms"
	"github.com/liamcoop/healthpro/profiles"
	"github.com/liamcoop/healthpro/rules"
	"github.com/liamcoop/healthpro/social"
	"github.com/liamcoop/healthpro/storage"
)

type Server struct {
	db          *sql.DB // nil when running in memory
	profiles    *profiles.Manager
	assessments *assessment.Service
	social      *social.Service
	router      *chi.Mux
}

// NewServer wires the services over db, or over in-memory stores when db
// is nil, and seeds any profile of the rule table that is not stored yet.
func NewServer(ctx context.Context, cfg config.Config, db *sql.DB) (*Server, error) {
	var (
		backend profiles.Backend
		entries storage.EntryStore
		follows storage.FollowStore
		mgrOpts []profiles.ManagerOption
	)
	if db != nil {
		backend = profiles.NewPostgresBackend(db)
		entries = storage.NewPostgresEntryStore(db)
		follows = storage.NewPostgresFollowStore(db)
		// other instances may edit rules in the same database
		mgrOpts = append(mgrOpts, profiles.WithRuleCache(rules.CacheConfig{TTL: cfg.RuleCacheTTL}))
	} else {
		backend = profiles.NewMemoryBackend()
		entries = storage.NewMemoryEntryStore()
		follows = storage.NewMemoryFollowStore()
	}

	manager := profiles.NewManager(backend, mgrOpts...)
	logger.Info("loading profiles")
	if err := manager.LoadAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	table, err := loadRuleTable(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	created, err := manager.Seed(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(created) > 0 {
		logger.Info("seeded profiles", "profiles", created)
	}

	if _, err := manager.GetEngine(cfg.DefaultProfile); err != nil {
		return nil, fmt.Errorf("default profile: %w", err)
	}

	normsTable, err := loadNormsTable(cfg.NormsFile)
	if err != nil {
		return nil, err
	}

	opts := []assessment.Option{
		assessment.WithDefaultProfile(cfg.DefaultProfile),
		assessment.WithWorkers(cfg.BatchWorkers),
		assessment.WithNorms(normsTable),
	}
	if cfg.OpenAIAPIKey != "" {
		predictor, err := narrative.NewOpenAIPredictor(narrative.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, assessment.WithPredictor(predictor))
	}

	s := &Server{
		db:          db,
		profiles:    manager,
		assessments: assessment.NewService(entries, manager, opts...),
		social:      social.NewService(entries, follows),
	}
	s.setupRoutes()

	return s, nil
}

func loadRuleTable(path string) (*rules.RuleTable, error) {
	if path == "" {
		return rules.DefaultRuleTable()
	}
	table, err := rules.LoadRuleTableFile(path)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded rule table", "path", path, "profiles", len(table.Profiles))
	return table, nil
}

func loadNormsTable(path string) (*norms.Table, error) {
	if path == "" {
		return norms.DefaultTable()
	}
	table, err := norms.LoadTableFile(path)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded norms table", "path", path, "bands", len(table.Bands))
	return table, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(recordStatus)

	r.Handle("/metrics", telemetry.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Stateless classification
		r.Post("/assess", s.handleAssess)

		r.Route("/users/{userId}", func(r chi.Router) {
			r.Post("/entries", s.handleAddEntry)
			r.Get("/entries", s.handleListEntries)
			r.Get("/metrics", s.handleUserMetrics)
			r.Get("/assessment", s.handleUserAssessment)
			r.Get("/norms", s.handleUserNorms)

			r.Get("/following", s.handleListFollowing)
			r.Put("/following/{peerId}", s.handleFollow)
			r.Delete("/following/{peerId}", s.handleUnfollow)
			r.Get("/compare/{peerId}", s.handleCompare)
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", s.handleListProfiles)
			r.Post("/", s.handleCreateProfile)

			r.Route("/{profileId}", func(r chi.Router) {
				r.Get("/", s.handleGetProfile)
				r.Delete("/", s.handleDeleteProfile)

				// Schema management
				r.Get("/schema", s.handleGetSchema)
				r.Put("/schema", s.handleUpdateSchema)

				// Rule management
				r.Post("/rules", s.handleCreateRule)
				r.Get("/rules", s.handleListRules)
				r.Get("/rules/{ruleId}", s.handleGetRule)
				r.Put("/rules/{ruleId}", s.handleUpdateRule)
				r.Delete("/rules/{ruleId}", s.handleDeleteRule)

				r.Post("/evaluate", s.handleEvaluateRules)
				r.Post("/batch", s.handleBatch)
			})
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// recordStatus counts responses by status code
func recordStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		telemetry.RecordResponse(status)
	})
}

func main() {
	cfg := config.Load()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		openCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		var err error
		db, err = database.Open(openCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to database", "error", err)
		}
		defer db.Close()

		if cfg.MigrateOnStart {
			if err := database.MigrateUp(db); err != nil {
				logger.Fatal("failed to migrate database", "error", err)
			}
			logger.Info("migrations applied")
		}
	} else {
		logger.Warn("DATABASE_URL not set, keeping all data in memory")
	}

	server, err := NewServer(context.Background(), cfg, db)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "port", cfg.Port, "default_profile", cfg.DefaultProfile)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
