package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"collab-server/internal/auth"
	"collab-server/internal/config"
	"collab-server/internal/database"
	"collab-server/internal/gateway"
	"collab-server/internal/handlers"
	"collab-server/internal/store"
	"collab-server/pkg/logger"

	"github.com/gorilla/mux"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize durable store (snapshot reads for cold hydration)
	db, err := database.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize the room state cache
	var cache store.Cache
	if cfg.Redis.URL != "" {
		redisCache, err := store.NewRedisCache(cfg.Redis.URL, cfg.Collab.RoomStateTTL)
		if err != nil {
			logger.Fatal("Failed to connect to redis: %v", err)
		}
		defer redisCache.Close()
		cache = redisCache
	} else {
		logger.Info("REDIS_URL not set, using in-process room state cache")
		cache = store.NewMemoryCache(cfg.Collab.RoomStateTTL)
	}
	stateStore := store.NewService(cache)

	// Initialize services
	authService := auth.NewService(cfg)

	// Initialize the collaboration gateway
	hub := gateway.NewHub()
	go hub.Run()
	gw := gateway.New(hub, stateStore, db)

	// Initialize handlers
	collabHandlers := handlers.NewCollabHandlers(authService, gw)
	roomHandlers := handlers.NewRoomHandlers(stateStore)

	// Setup routes
	router := mux.NewRouter()
	router.HandleFunc("/health", roomHandlers.Health).Methods(http.MethodGet)
	router.HandleFunc("/rooms/active", roomHandlers.ActiveRooms).Methods(http.MethodGet)
	router.HandleFunc("/collab", collabHandlers.HandleCollab)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("🚀 Collaboration server started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/collab", cfg.Server.Port)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
