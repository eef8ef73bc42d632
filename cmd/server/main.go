package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"chat-proxy/internal/chat"
	"chat-proxy/internal/config"
	"chat-proxy/internal/keys"
	"chat-proxy/internal/llm"
	"chat-proxy/internal/scheduler"
	"chat-proxy/internal/server"
	"chat-proxy/internal/session"
	"chat-proxy/internal/storage"
	"chat-proxy/internal/storage/factory"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := factory.Open(ctx, cfg)
	if storage.IsDegraded(store) {
		log.Println("⚠️ No durable store, running without history and memory")
	}

	rotator := keys.NewRotator(cfg.GeminiAPIKeys)
	if rotator.Size() == 0 {
		log.Println("⚠️ GEMINI_API_KEYS is empty, gemini requests will fail")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("⚠️ OPENAI_API_KEY is empty, gpt requests will fail")
	}

	registry := session.NewRegistry(session.Options{
		Factory:    llm.NewFactory(cfg),
		GeminiKeys: rotator,
		OpenAIKey:  cfg.OpenAIAPIKey,
		Store:      store,
		BasePrompt: cfg.BaseSystemPrompt,
	})
	svc := chat.NewService(registry, store)

	sched := scheduler.New(registry, cfg.SessionSweepSpec, cfg.SessionIdleTTL)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	srv := server.New(svc, server.Options{
		Port:        cfg.Port,
		Attribution: cfg.Attribution,
		StaticDir:   cfg.StaticDir,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🔌 Chat proxy shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Printf("❌ Server shutdown error: %v", err)
	}
	sched.Stop()
	if err := store.Close(shutdownCtx); err != nil {
		log.Printf("❌ Store close error: %v", err)
	}
}
