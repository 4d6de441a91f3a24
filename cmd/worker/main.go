package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/redis/go-redis/v9"

	"kiosk/internal/attendance"
	"kiosk/internal/config"
	"kiosk/internal/directory"
	"kiosk/internal/queue"
	"kiosk/internal/store"
)

const (
	presentKey = "kiosk:present"
	onBreakKey = "kiosk:onbreak"
	namesKey   = "kiosk:user_names"
)

// Worker consumes transition events and maintains the Redis presence cache
// so dashboards can read who is in the building without hitting Postgres.
// The cache is derived state; the attendance log stays the source of truth.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "kiosk:transitions")
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for transition events...")
	for msg := range messages {
		if msg.Type != "transition" {
			continue
		}
		var evt attendance.Event
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("bad event payload %s: %v", msg.ID, err)
			continue
		}
		if err := applyToCache(ctx, redisClient.Client, evt); err != nil {
			log.Printf("presence cache update failed for user %d: %v", evt.UserID, err)
		}
	}

	log.Println("worker stopped")
}

func applyToCache(ctx context.Context, rdb *redis.Client, evt attendance.Event) error {
	member := strconv.FormatInt(evt.UserID, 10)
	pipe := rdb.Pipeline()
	switch evt.Status {
	case directory.StatusCheckedIn:
		pipe.SAdd(ctx, presentKey, member)
		pipe.SRem(ctx, onBreakKey, member)
		pipe.HSet(ctx, namesKey, member, evt.Name)
	case directory.StatusOnBreak:
		pipe.SAdd(ctx, onBreakKey, member)
		pipe.SRem(ctx, presentKey, member)
		pipe.HSet(ctx, namesKey, member, evt.Name)
	case directory.StatusCheckedOut:
		pipe.SRem(ctx, presentKey, member)
		pipe.SRem(ctx, onBreakKey, member)
		pipe.HDel(ctx, namesKey, member)
	}
	_, err := pipe.Exec(ctx)
	return err
}
