package main

import (
	"context"
	"log"
	"strings"

	"github.com/atomcoach/atom/internal/ai"
	"github.com/atomcoach/atom/internal/bot"
	"github.com/atomcoach/atom/internal/chat"
	"github.com/atomcoach/atom/internal/config"
	"github.com/atomcoach/atom/internal/db"
	"github.com/atomcoach/atom/internal/httpapi"
	"github.com/atomcoach/atom/internal/store/rabbitmq"
	"github.com/atomcoach/atom/internal/store/redisstore"
	"github.com/atomcoach/atom/internal/transport"
)

func newRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("groq", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.GroqModel
		}
		return ai.NewGroqProvider(cfg.GroqBaseURL, cfg.GroqAPIKey, m), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	return reg
}

func main() {
	cfg := config.Load()
	if err := cfg.RequireSecrets(); err != nil {
		log.Fatalf("config: %v", err)
	}

	gdb := db.Connect(cfg.DBDSN)
	if err := chat.AutoMigrate(gdb); err != nil {
		log.Fatalf("automigrate: %v", err)
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit publisher: %v", err)
	}
	defer pub.Close()

	provider, err := newRegistry(cfg).Get(context.Background(), cfg.AIProvider, "")
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}

	repo := chat.NewRepo(gdb)
	gateway := chat.NewGateway(provider, 0)
	svc := chat.NewService(repo, gateway, cfg.ChatContextWindowSize)

	tg := transport.NewClient(cfg.BotAPIBaseURL, cfg.BotToken)
	d := bot.NewDispatcher(svc, rds, pub, tg)

	r := httpapi.NewRouter(cfg, d)

	log.Printf("atom coach webhook server starting addr=%s provider=%s", cfg.HTTPAddr, cfg.AIProvider)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("http server: %v", err)
	}
}
