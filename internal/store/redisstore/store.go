package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dialog states are transient by design; an abandoned dialog simply expires
// back to the no-session precondition.
const dialogStateTTL = 30 * time.Minute

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func dialogKey(userID int64) string {
	return fmt.Sprintf("dialog_state:%d", userID)
}

// DialogState returns the stored state, or "" when no dialog is active.
func (s *Store) DialogState(ctx context.Context, userID int64) (string, error) {
	v, err := s.rdb.Get(ctx, dialogKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

func (s *Store) SetDialogState(ctx context.Context, userID int64, state string) error {
	return s.rdb.Set(ctx, dialogKey(userID), state, dialogStateTTL).Err()
}

func (s *Store) ClearDialogState(ctx context.Context, userID int64) error {
	return s.rdb.Del(ctx, dialogKey(userID)).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
