package chat

import (
	"context"
	"errors"
	"log"
	"strings"
)

// ErrNoProfile means a chat message arrived for a record that never finished
// onboarding; callers answer with a corrective instruction, not an error page.
var ErrNoProfile = errors.New("chat: user has no profile")

type Service struct {
	repo       *Repo
	gateway    *Gateway
	windowSize int
	locks      *KeyedMutex
}

// MaxWindowSize bounds how many persisted turns a single request may carry.
const MaxWindowSize = 100

func NewService(repo *Repo, gateway *Gateway, windowSize int) *Service {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if windowSize > MaxWindowSize {
		log.Printf("context window capped size=%d max=%d", windowSize, MaxWindowSize)
		windowSize = MaxWindowSize
	}
	return &Service{
		repo:       repo,
		gateway:    gateway,
		windowSize: windowSize,
		locks:      NewKeyedMutex(),
	}
}

func (s *Service) Record(ctx context.Context, userID int64) (*UserRecord, error) {
	return s.repo.LoadRecord(ctx, userID)
}

// Onboard creates the record the moment name collection completes: first
// name set, history empty, written atomically as one row.
func (s *Service) Onboard(ctx context.Context, userID int64, name string) (*UserRecord, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	name = strings.TrimSpace(name)
	rec := &UserRecord{UserID: userID, FirstName: &name, History: []Turn{}}
	if err := s.repo.SaveRecord(ctx, rec); err != nil {
		return nil, err
	}
	log.Printf("new user onboarded name=%s user_id=%d", name, userID)
	return rec, nil
}

// Converse runs one full exchange: window the persisted history, compile the
// persona request, call the gateway, append both turns, persist. The whole
// cycle holds the per-user lock so at most one mutation is in flight per user.
func (s *Service) Converse(ctx context.Context, userID int64, text string) (string, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	rec, err := s.repo.LoadRecord(ctx, userID)
	if err != nil {
		return "", err
	}
	if !rec.Onboarded() {
		return "", ErrNoProfile
	}

	log.Printf("message from %s (%d): %q", *rec.FirstName, userID, text)

	turns := Window(rec.History, s.windowSize)
	turns = append(turns[:len(turns):len(turns)], Turn{Role: RoleUser, Content: text})
	request := BuildRequest(*rec.FirstName, turns)

	// Complete never propagates a provider error; on failure the reply is the
	// fixed fallback and both turns are still persisted.
	reply := s.gateway.Complete(ctx, request)

	rec.History = append(rec.History,
		Turn{Role: RoleUser, Content: text},
		Turn{Role: RoleAssistant, Content: reply},
	)
	if err := s.repo.SaveRecord(ctx, rec); err != nil {
		return "", err
	}

	log.Printf("reply to %s (%d): %q", *rec.FirstName, userID, truncate(reply, 100))
	return reply, nil
}

// Job passthroughs
func (s *Service) CreateJob(ctx context.Context, job *DeliveryJob) error {
	return s.repo.CreateJob(ctx, job)
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*DeliveryJob, error) {
	return s.repo.GetJobByID(ctx, jobID)
}

func (s *Service) MarkJobRunning(ctx context.Context, jobID string) error {
	return s.repo.UpdateJobStatusRunning(ctx, jobID)
}

func (s *Service) SetJobReply(ctx context.Context, jobID string, reply string) error {
	return s.repo.SetJobReply(ctx, jobID, reply)
}

func (s *Service) MarkJobSucceeded(ctx context.Context, jobID string) error {
	return s.repo.MarkJobSucceeded(ctx, jobID)
}

func (s *Service) MarkJobFailed(ctx context.Context, jobID string, errMsg string) error {
	return s.repo.MarkJobFailed(ctx, jobID, errMsg)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
