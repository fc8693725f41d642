package bot

import (
	"context"
	"log"
	"strings"

	"github.com/atomcoach/atom/internal/chat"
	"github.com/atomcoach/atom/internal/common"
)

// Event is one inbound transport delivery: a typed message or a slash
// command, already reduced to (user_id, text).
type Event struct {
	UserID  int64
	Text    string
	Command string
}

// StateStore holds the transient per-user dialog position.
type StateStore interface {
	DialogState(ctx context.Context, userID int64) (string, error)
	SetDialogState(ctx context.Context, userID int64, state string) error
	ClearDialogState(ctx context.Context, userID int64) error
}

// JobQueue hands a persisted delivery job to the worker.
type JobQueue interface {
	PublishJob(ctx context.Context, jobID string) error
}

// Sender delivers replies back over the chat transport.
type Sender interface {
	SendMessage(ctx context.Context, userID int64, text string) error
	SendTyping(ctx context.Context, userID int64) error
}

// Dispatcher is the conversation state machine. Commands always win over
// dialog-state text handling; onboarding runs inline (no model call), active
// chat goes through the job queue.
type Dispatcher struct {
	svc    *chat.Service
	states StateStore
	queue  JobQueue
	sender Sender
}

func NewDispatcher(svc *chat.Service, states StateStore, queue JobQueue, sender Sender) *Dispatcher {
	return &Dispatcher{svc: svc, states: states, queue: queue, sender: sender}
}

func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	if ev.UserID == 0 {
		return nil
	}
	if ev.Command != "" {
		return d.handleCommand(ctx, ev)
	}
	return d.handleText(ctx, ev)
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev Event) error {
	switch ev.Command {
	case "start":
		return d.start(ctx, ev.UserID)
	case "cancel":
		if err := d.states.ClearDialogState(ctx, ev.UserID); err != nil {
			log.Printf("clear dialog state failed user_id=%d err=%v", ev.UserID, err)
		}
		return d.sender.SendMessage(ctx, ev.UserID, ReplyCancelled)
	case "create_plan":
		if err := d.states.SetDialogState(ctx, ev.UserID, string(StateAwaitingPlanType)); err != nil {
			log.Printf("set dialog state failed user_id=%d err=%v", ev.UserID, err)
		}
		return d.sender.SendMessage(ctx, ev.UserID, ReplyPlanIntro)
	default:
		log.Printf("unknown command user_id=%d cmd=%q", ev.UserID, ev.Command)
		return nil
	}
}

func (d *Dispatcher) start(ctx context.Context, userID int64) error {
	rec, err := d.svc.Record(ctx, userID)
	if err != nil {
		log.Printf("load record failed user_id=%d err=%v", userID, err)
		return d.sender.SendMessage(ctx, userID, chat.FallbackReply)
	}

	if rec.Onboarded() {
		// Idempotent short-circuit: no state change, no record mutation.
		if err := d.states.ClearDialogState(ctx, userID); err != nil {
			log.Printf("clear dialog state failed user_id=%d err=%v", userID, err)
		}
		return d.sender.SendMessage(ctx, userID, replyWelcomeBack(*rec.FirstName))
	}

	if err := d.states.SetDialogState(ctx, userID, string(StateAwaitingName)); err != nil {
		log.Printf("set dialog state failed user_id=%d err=%v", userID, err)
	}
	return d.sender.SendMessage(ctx, userID, ReplyOnboarding)
}

func (d *Dispatcher) handleText(ctx context.Context, ev Event) error {
	state, err := d.states.DialogState(ctx, ev.UserID)
	if err != nil {
		// Unreadable dialog state falls back to the active-chat path.
		log.Printf("read dialog state failed user_id=%d err=%v", ev.UserID, err)
		state = string(StateNone)
	}

	switch DialogState(state) {
	case StateAwaitingName:
		return d.receiveName(ctx, ev)
	case StateAwaitingPlanType:
		// Stub flow: terminal, every text loops back to the intro.
		return d.sender.SendMessage(ctx, ev.UserID, ReplyPlanIntro)
	default:
		return d.chatMessage(ctx, ev)
	}
}

func (d *Dispatcher) receiveName(ctx context.Context, ev Event) error {
	name := strings.TrimSpace(ev.Text)
	if name == "" {
		return d.sender.SendMessage(ctx, ev.UserID, ReplyOnboarding)
	}

	if _, err := d.svc.Onboard(ctx, ev.UserID, name); err != nil {
		log.Printf("onboard failed user_id=%d err=%v", ev.UserID, err)
		return d.sender.SendMessage(ctx, ev.UserID, chat.FallbackReply)
	}
	if err := d.states.ClearDialogState(ctx, ev.UserID); err != nil {
		log.Printf("clear dialog state failed user_id=%d err=%v", ev.UserID, err)
	}
	return d.sender.SendMessage(ctx, ev.UserID, replyNiceToMeet(name))
}

func (d *Dispatcher) chatMessage(ctx context.Context, ev Event) error {
	rec, err := d.svc.Record(ctx, ev.UserID)
	if err != nil {
		log.Printf("load record failed user_id=%d err=%v", ev.UserID, err)
		return d.sender.SendMessage(ctx, ev.UserID, chat.FallbackReply)
	}
	if !rec.Onboarded() {
		return d.sender.SendMessage(ctx, ev.UserID, ReplyUseStart)
	}

	if err := d.sender.SendTyping(ctx, ev.UserID); err != nil {
		log.Printf("typing action failed user_id=%d err=%v", ev.UserID, err)
	}

	jobID, err := common.NewULID()
	if err != nil {
		log.Printf("ulid failed user_id=%d err=%v", ev.UserID, err)
		return d.sender.SendMessage(ctx, ev.UserID, chat.FallbackReply)
	}

	job := &chat.DeliveryJob{
		ID:     jobID,
		UserID: ev.UserID,
		Prompt: ev.Text,
		Status: chat.JobQueued,
	}
	if err := d.svc.CreateJob(ctx, job); err != nil {
		log.Printf("create job failed user_id=%d err=%v", ev.UserID, err)
		return d.sender.SendMessage(ctx, ev.UserID, chat.FallbackReply)
	}
	if err := d.queue.PublishJob(ctx, job.ID); err != nil {
		log.Printf("publish job failed user_id=%d job_id=%s err=%v", ev.UserID, job.ID, err)
		return d.sender.SendMessage(ctx, ev.UserID, chat.FallbackReply)
	}
	return nil
}
