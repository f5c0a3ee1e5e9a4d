package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/treasury/backend/src/config"
	"github.com/username/treasury/backend/src/database"
	"github.com/username/treasury/backend/src/handlers"
	"github.com/username/treasury/backend/src/logger"
	"github.com/username/treasury/backend/src/processors"
	"github.com/username/treasury/backend/src/repository"
	"github.com/username/treasury/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Treasury ledger backend starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing caches...")
	rateCache := cache.New(config.Cfg.RateCacheTTL, config.Cfg.CacheCleanup)
	reportCache := cache.New(config.Cfg.ReportCacheTTL, config.Cfg.CacheCleanup)

	logger.L.Info("Initializing services and handlers...")
	txStore := repository.NewTransactionStore(database.DB)
	rateStore := repository.NewExchangeRateStore(database.DB)
	commStore := repository.NewCommissionRateStore(database.DB)

	rateProvider := services.NewRateProviderClient(config.Cfg.RateProviderBaseURL, config.Cfg.RateProviderTimeout)
	rateResolver := processors.NewExchangeRateResolver(
		rateStore, rateProvider, rateCache,
		config.Cfg.DefaultUSDTRYRate, config.Cfg.EURFallbackMultiplier)
	commissionResolver := processors.NewCommissionRateResolver(commStore)
	normalizer := processors.NewTransactionNormalizer(rateResolver, commissionResolver)
	engine := processors.NewAggregationEngine()

	reportService := services.NewReportService(
		txStore, rateStore, commStore,
		rateResolver, commissionResolver, normalizer, engine,
		rateProvider, reportCache, config.Cfg.AbortOnRecordError)

	reportHandler := handlers.NewReportHandler(reportService)
	rateHandler := handlers.NewRateHandler(reportService)
	commissionHandler := handlers.NewCommissionHandler(reportService)
	txHandler := handlers.NewTransactionHandler(reportService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("GET /api/reports/buckets", reportHandler.HandleGetBucketTotals)
	apiRouter.HandleFunc("GET /api/commission-rates", commissionHandler.HandleGetCommissionRate)
	apiRouter.HandleFunc("GET /api/commission-rates/history", commissionHandler.HandleListCommissionRates)
	apiRouter.HandleFunc("POST /api/commission-rates", commissionHandler.HandleSetCommissionRate)
	apiRouter.HandleFunc("POST /api/rates/manual", rateHandler.HandleSetManualRate)
	apiRouter.HandleFunc("POST /api/rates/refresh", rateHandler.HandleRefreshRates)
	apiRouter.HandleFunc("POST /api/transactions", txHandler.HandleCreateTransaction)
	apiRouter.HandleFunc("PUT /api/transactions/{id}", txHandler.HandleUpdateTransaction)
	apiRouter.HandleFunc("DELETE /api/transactions/{id}", txHandler.HandleDeleteTransaction)

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Treasury ledger backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
