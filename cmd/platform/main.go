package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-care/platform/internal/agent"
	"github.com/meridian-care/platform/internal/audit"
	"github.com/meridian-care/platform/internal/clinical"
	"github.com/meridian-care/platform/internal/ehr"
	"github.com/meridian-care/platform/internal/encounter"
	"github.com/meridian-care/platform/internal/privacy"
	"github.com/meridian-care/platform/internal/records"
	"github.com/meridian-care/platform/internal/shared/auth"
	"github.com/meridian-care/platform/internal/shared/config"
	"github.com/meridian-care/platform/internal/shared/database"
	"github.com/meridian-care/platform/internal/shared/metrics"
	secmiddleware "github.com/meridian-care/platform/internal/shared/middleware"
	"github.com/meridian-care/platform/internal/transcribe"
)

// App holds all application dependencies
type App struct {
	Config    *config.Config
	DB        *database.DB
	AuditSink audit.Sink
	EHR       ehr.Source
	KurrentDB *audit.KurrentDBSink
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	// Database is needed only for the postgres record store.
	if cfg.Agent.RecordStore == "postgres" {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			fmt.Fprintf(os.Stderr, "postgres record store requires a database: %v\n", err)
			os.Exit(1)
		}
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			fmt.Printf("Warning: Migration failed: %v\n", err)
		}
	}

	sink, err := buildAuditSink(ctx, app, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize audit sink: %v\n", err)
		os.Exit(1)
	}
	app.AuditSink = sink
	if app.KurrentDB != nil {
		defer app.KurrentDB.Close()
	}

	his, err := buildEHRSource(ctx, cfg)
	if err != nil {
		fmt.Printf("Warning: HIS bridge not available: %v\n", err)
		fmt.Println("Running without lab reports and appointments...")
	}
	app.EHR = his

	policy := privacy.NewPolicy()
	store, err := buildRecordStore(app, cfg, policy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize record store: %v\n", err)
		os.Exit(1)
	}

	nlp, guidelines, err := buildClinicalServices(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize clinical services: %v\n", err)
		os.Exit(1)
	}

	orchestrator := agent.NewOrchestrator(agent.Config{
		AgentID:          cfg.Agent.AgentID,
		RequireApproval:  cfg.Agent.RequireApproval,
		AuditSink:        app.AuditSink,
		Policy:           policy,
		Store:            store,
		NLP:              nlp,
		Guidelines:       guidelines,
		AudioTranscriber: buildAudioTranscriber(cfg),
	})

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.MaxBodySize(1 << 20))
	r.Use(secmiddleware.RateLimiter(50, 100))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		}

		encounterHandler := encounter.NewHandler(orchestrator)
		r.Mount("/", encounterHandler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("Meridian Care Encounter Platform")
	fmt.Println("============================================")
	fmt.Printf("Environment:   %s\n", cfg.Server.Env)
	fmt.Printf("Server:        http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:           http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:        http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("Agent:         %s (require approval: %v)\n", cfg.Agent.AgentID, cfg.Agent.RequireApproval)
	fmt.Printf("Record store:  %s\n", cfg.Agent.RecordStore)
	fmt.Printf("Audit sink:    %s\n", cfg.Audit.Sink)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

// buildAuditSink selects the audit backend from a closed set.
func buildAuditSink(ctx context.Context, app *App, cfg *config.Config) (audit.Sink, error) {
	switch cfg.Audit.Sink {
	case "memory":
		return audit.NewMemorySink(), nil
	case "file":
		return audit.NewFileSink(cfg.Audit.FilePath)
	case "kurrentdb":
		sink, err := audit.NewKurrentDBSink(cfg.KurrentDB)
		if err != nil {
			return nil, err
		}
		if err := sink.Initialize(ctx); err != nil {
			sink.Close()
			return nil, err
		}
		app.KurrentDB = sink
		fmt.Println("KurrentDB audit sink initialized")
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown audit sink: %s", cfg.Audit.Sink)
	}
}

// buildEHRSource connects the optional HIS bridge.
func buildEHRSource(ctx context.Context, cfg *config.Config) (ehr.Source, error) {
	switch cfg.EHR.Provider {
	case "":
		return nil, nil
	case "heliant":
		source, err := ehr.NewHeliantSource(ctx, ehr.DefaultHeliantConfig(cfg.EHR))
		if err != nil {
			return nil, err
		}
		fmt.Println("Heliant HIS bridge connected")
		return source, nil
	default:
		return nil, fmt.Errorf("unknown EHR provider: %s", cfg.EHR.Provider)
	}
}

// buildRecordStore selects the record store from a closed set.
func buildRecordStore(app *App, cfg *config.Config, policy *privacy.Policy) (records.Store, error) {
	switch cfg.Agent.RecordStore {
	case "memory":
		return records.NewMemoryStore(policy, app.EHR), nil
	case "postgres":
		return records.NewPostgresStore(app.DB.Pool, policy, app.EHR), nil
	default:
		return nil, fmt.Errorf("unknown record store: %s", cfg.Agent.RecordStore)
	}
}

// buildClinicalServices selects NLP and guideline providers.
func buildClinicalServices(cfg *config.Config) (clinical.NLPService, clinical.GuidelineService, error) {
	if cfg.Agent.NLPProvider != "local" {
		return nil, nil, fmt.Errorf("unknown NLP provider: %s", cfg.Agent.NLPProvider)
	}
	if cfg.Agent.GuidelineProvider != "local" {
		return nil, nil, fmt.Errorf("unknown guideline provider: %s", cfg.Agent.GuidelineProvider)
	}
	return clinical.NewLocalNLPService(), clinical.NewLocalGuidelineService(), nil
}

// buildAudioTranscriber wires the optional batch transcription client.
func buildAudioTranscriber(cfg *config.Config) transcribe.AudioTranscriber {
	if cfg.Agent.AudioTranscriber != "batch" {
		return nil
	}
	return transcribe.NewBatchClient(transcribe.BatchClientConfig{
		BaseURL:      cfg.Agent.BatchTranscribeURL,
		PollInterval: time.Duration(cfg.Transcribe.PollIntervalSeconds) * time.Second,
		MaxPolls:     cfg.Transcribe.MaxPolls,
	})
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Meridian Care Encounter Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if hs, ok := app.EHR.(*ehr.HeliantSource); ok {
			if err := hs.Health(r.Context()); err != nil {
				checks["ehr"] = "not ready: " + err.Error()
			} else {
				checks["ehr"] = "ready"
			}
		} else {
			checks["ehr"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
