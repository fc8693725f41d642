package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/atomcoach/atom/internal/ai"
	"github.com/atomcoach/atom/internal/bot"
	"github.com/atomcoach/atom/internal/chat"
	"github.com/atomcoach/atom/internal/config"
	"github.com/atomcoach/atom/internal/db"
	"github.com/atomcoach/atom/internal/store/rabbitmq"
	"github.com/atomcoach/atom/internal/transport"
	amqp "github.com/rabbitmq/amqp091-go"
)

// maxDeliveryAttempts bounds how often a transiently failed job is re-queued
// before it dead-letters for inspection.
const maxDeliveryAttempts = 3

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
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

	repo := chat.NewRepo(gdb)

	// Provider registry (route by configured provider name)
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

	provider, err := reg.Get(context.Background(), cfg.AIProvider, "")
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}

	gateway := chat.NewGateway(provider, 0)
	svc := chat.NewService(repo, gateway, cfg.ChatContextWindowSize)
	sender := transport.NewClient(cfg.BotAPIBaseURL, cfg.BotToken)
	deliverer := bot.NewDeliverer(svc, sender)

	// The publisher declares the main/retry/DLQ topology and re-queues
	// transiently failed jobs onto the retry queue.
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit publisher: %v", err)
	}
	defer pub.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m rabbitmq.JobMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}
				if m.Attempt < 1 {
					m.Attempt = 1
				}

				start := time.Now()
				retry, err := deliverer.Deliver(ctx, m.JobID)
				if err == nil {
					if err := d.Ack(false); err != nil {
						log.Printf("worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
					}
					continue
				}

				if retry && m.Attempt < maxDeliveryAttempts {
					log.Printf("worker=%d job %s attempt=%d re-queued cost=%s err=%v",
						workerID, m.JobID, m.Attempt, time.Since(start), err)
					if perr := pub.PublishRetry(ctx, m.JobID, m.Attempt+1); perr == nil {
						_ = d.Ack(false)
						continue
					} else {
						log.Printf("worker=%d retry publish failed job=%s err=%v", workerID, m.JobID, perr)
					}
				}

				log.Printf("worker=%d job %s failed attempt=%d cost=%s err=%v",
					workerID, m.JobID, m.Attempt, time.Since(start), err)
				_ = repo.MarkJobFailed(ctx, m.JobID, err.Error())
				_ = d.Nack(false, false)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				// The broker closed the consumer channel; drain in-flight
				// jobs and exit so the supervisor restarts us.
				log.Printf("delivery channel closed, exiting")
				close(jobs)
				wg.Wait()
				os.Exit(1)
			}
			jobs <- d
		}
	}
}
