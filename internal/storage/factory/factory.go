package factory

import (
	"context"
	"log"
	"strings"

	"chat-proxy/internal/config"
	"chat-proxy/internal/history"
	"chat-proxy/internal/storage"
	"chat-proxy/internal/storage/mongostore"
	"chat-proxy/internal/storage/pgstore"
)

// Open returns the configured store. It never fails: when nothing is
// configured, or the configured backend cannot be reached, it logs and
// falls back to storage.Nop so requests keep working without persistence.
func Open(ctx context.Context, cfg *config.Config) storage.Store {
	backend := Resolve(cfg)
	switch backend {
	case config.StoreMongo:
		st, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Printf("MongoDB connection error: %v. Continuing without persistence (memory and history will not be saved).", err)
			return storage.Nop{}
		}
		return st
	case config.StorePostgres:
		st, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("PostgreSQL connection error: %v. Continuing without persistence (memory and history will not be saved).", err)
			return storage.Nop{}
		}
		return st
	case config.StoreFile:
		st, err := storage.NewFileStore(cfg.HistoryFilePath, cfg.MemoryFilePath)
		if err != nil {
			log.Printf("failed to init file store: %v. Continuing without persistence.", err)
			return storage.Nop{}
		}
		return st
	case config.StoreMemory:
		return history.NewManager()
	default:
		return storage.Nop{}
	}
}

// Resolve picks the backend. "auto" prefers MongoDB, then PostgreSQL, then
// the file store; with none of them configured it resolves to "none".
// An explicit backend whose connection setting is empty also resolves to "none".
func Resolve(cfg *config.Config) config.StoreBackend {
	backend := config.StoreBackend(strings.ToLower(strings.TrimSpace(string(cfg.StoreBackend))))
	switch backend {
	case config.StoreMongo:
		if cfg.MongoURI == "" {
			return config.StoreNone
		}
		return backend
	case config.StorePostgres:
		if cfg.DatabaseURL == "" {
			return config.StoreNone
		}
		return backend
	case config.StoreFile:
		if cfg.HistoryFilePath == "" {
			return config.StoreNone
		}
		return backend
	case config.StoreMemory, config.StoreNone:
		return backend
	}

	switch {
	case cfg.MongoURI != "":
		return config.StoreMongo
	case cfg.DatabaseURL != "":
		return config.StorePostgres
	case cfg.HistoryFilePath != "":
		return config.StoreFile
	default:
		return config.StoreNone
	}
}
