// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/efchatnet/chatd/chat"
	"github.com/efchatnet/chatd/integration"
	"github.com/efchatnet/chatd/middleware"
	"github.com/efchatnet/chatd/storage"
	"github.com/efchatnet/chatd/storage/memory"
	"github.com/efchatnet/chatd/storage/postgres"
	"github.com/efchatnet/chatd/transport"
)

// Config is read from the environment (a .env file is honored). With no
// DATABASE_URL the server runs on the in-memory store; with no REDIS_URL
// the relay bridge is disabled.
type Config struct {
	Addr           string   `envconfig:"ADDR" default:":8080"`
	DatabaseURL    string   `envconfig:"DATABASE_URL"`
	RedisURL       string   `envconfig:"REDIS_URL"`
	InviteTTLHours int      `envconfig:"INVITE_TTL_HOURS" default:"24"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
}

func main() {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Error("failed to read configuration", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	var store storage.Store
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		store = postgres.NewStore(db)
		log.Info("using postgres storage")
	} else {
		store = memory.NewStore()
		log.Warn("no DATABASE_URL set, state will not survive restarts")
	}

	if err := store.Migrate(); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	queue := storage.NewQueue(store, log)

	var relay chat.Relay
	var redisRelay *integration.RedisRelay
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		redisRelay = integration.NewRedisRelay(rdb, log)
		relay = redisRelay
		log.Info("relay bridge enabled", "addr", cfg.RedisURL)
	}

	service, err := chat.NewService(chat.Config{
		Queue:          queue,
		InviteTTLHours: cfg.InviteTTLHours,
		Relay:          relay,
		Logger:         log,
	})
	if err != nil {
		log.Error("failed to start chat service", "error", err)
		os.Exit(1)
	}

	if redisRelay != nil {
		redisRelay.Listen(service)
	}

	wsHandler := transport.NewHandler(service, log, cfg.AllowedOrigins)

	r := mux.NewRouter()
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.HandleFunc("/ws", wsHandler.HandleWebSocket).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if db != nil {
			if err := db.Ping(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("Database unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("chatd listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("server shutdown", "error", err)
	}

	// Let the tail of the write-behind log reach the store before closing.
	queue.Flush()

	if redisRelay != nil {
		redisRelay.Close()
	}
	if err := store.Close(); err != nil {
		log.Warn("store close", "error", err)
	}

	log.Info("bye")
}
