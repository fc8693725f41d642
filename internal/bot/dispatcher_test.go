package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/atomcoach/atom/internal/ai"
	"github.com/atomcoach/atom/internal/chat"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type fakeStates struct {
	m map[int64]string
}

func (f *fakeStates) DialogState(ctx context.Context, userID int64) (string, error) {
	_ = ctx
	return f.m[userID], nil
}

func (f *fakeStates) SetDialogState(ctx context.Context, userID int64, state string) error {
	_ = ctx
	f.m[userID] = state
	return nil
}

func (f *fakeStates) ClearDialogState(ctx context.Context, userID int64) error {
	_ = ctx
	delete(f.m, userID)
	return nil
}

type fakeQueue struct {
	published []string
}

func (f *fakeQueue) PublishJob(ctx context.Context, jobID string) error {
	_ = ctx
	f.published = append(f.published, jobID)
	return nil
}

type sentMsg struct {
	userID int64
	text   string
}

type fakeSender struct {
	messages []sentMsg
	typing   []int64
	sendErr  error
}

func (f *fakeSender) SendMessage(ctx context.Context, userID int64, text string) error {
	_ = ctx
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages = append(f.messages, sentMsg{userID: userID, text: text})
	return nil
}

func (f *fakeSender) SendTyping(ctx context.Context, userID int64) error {
	_ = ctx
	f.typing = append(f.typing, userID)
	return nil
}

func (f *fakeSender) lastText(t *testing.T) string {
	t.Helper()
	if len(f.messages) == 0 {
		t.Fatalf("no message sent")
	}
	return f.messages[len(f.messages)-1].text
}

type stubProvider struct{}

func (stubProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	_ = ctx
	_ = messages
	return "ok", nil
}

type fixture struct {
	d      *Dispatcher
	repo   *chat.Repo
	states *fakeStates
	queue  *fakeQueue
	sender *fakeSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := chat.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	repo := chat.NewRepo(db)
	svc := chat.NewService(repo, chat.NewGateway(stubProvider{}, 0), 12)

	states := &fakeStates{m: map[int64]string{}}
	queue := &fakeQueue{}
	sender := &fakeSender{}
	return &fixture{
		d:      NewDispatcher(svc, states, queue, sender),
		repo:   repo,
		states: states,
		queue:  queue,
		sender: sender,
	}
}

func TestStart_NewUserBeginsOnboarding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.d.Handle(ctx, Event{UserID: 200, Text: "/start", Command: "start"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := f.sender.lastText(t); got != ReplyOnboarding {
		t.Fatalf("expected onboarding prompt, got %q", got)
	}
	if f.states.m[200] != string(StateAwaitingName) {
		t.Fatalf("expected awaiting_name state, got %q", f.states.m[200])
	}

	// name arrives
	if err := f.d.Handle(ctx, Event{UserID: 200, Text: "Alex"}); err != nil {
		t.Fatalf("handle name: %v", err)
	}
	if got := f.sender.lastText(t); !strings.Contains(got, "Alex") {
		t.Fatalf("confirmation should mention the name, got %q", got)
	}
	if _, ok := f.states.m[200]; ok {
		t.Fatalf("dialog state should be cleared after onboarding")
	}

	rec, err := f.repo.LoadRecord(ctx, 200)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !rec.Onboarded() || *rec.FirstName != "Alex" {
		t.Fatalf("record not created: %+v", rec)
	}
	if len(rec.History) != 0 {
		t.Fatalf("history must be empty right after onboarding, got %d", len(rec.History))
	}
}

func TestStart_ExistingUserWelcomedBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := "Alex"
	if err := f.repo.SaveRecord(ctx, &chat.UserRecord{UserID: 201, FirstName: &name, History: []chat.Turn{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello"},
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := f.d.Handle(ctx, Event{UserID: 201, Text: "/start", Command: "start"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := f.sender.lastText(t); !strings.Contains(got, "welcome back") || !strings.Contains(got, "Alex") {
		t.Fatalf("expected welcome-back mentioning Alex, got %q", got)
	}

	rec, err := f.repo.LoadRecord(ctx, 201)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rec.History) != 2 {
		t.Fatalf("record must be unchanged, got %d turns", len(rec.History))
	}
}

func TestCommand_WinsOverAwaitingName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.states.m[202] = string(StateAwaitingName)
	if err := f.d.Handle(ctx, Event{UserID: 202, Text: "/cancel", Command: "cancel"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := f.sender.lastText(t); got != ReplyCancelled {
		t.Fatalf("expected cancellation notice, got %q", got)
	}
	if _, ok := f.states.m[202]; ok {
		t.Fatalf("cancel should clear the dialog state")
	}

	rec, err := f.repo.LoadRecord(ctx, 202)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.Onboarded() {
		t.Fatalf("no record should be created by a command during onboarding")
	}
}

func TestText_WithoutProfileGetsCorrection(t *testing.T) {
	f := newFixture(t)

	if err := f.d.Handle(context.Background(), Event{UserID: 203, Text: "give me a plan"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := f.sender.lastText(t); got != ReplyUseStart {
		t.Fatalf("expected re-onboarding instruction, got %q", got)
	}
	if len(f.queue.published) != 0 {
		t.Fatalf("no job should be enqueued without a profile")
	}
}

func TestText_ActiveUserEnqueuesJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := "Alex"
	if err := f.repo.SaveRecord(ctx, &chat.UserRecord{UserID: 204, FirstName: &name}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := f.d.Handle(ctx, Event{UserID: 204, Text: "how much protein?"}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(f.sender.typing) != 1 || f.sender.typing[0] != 204 {
		t.Fatalf("typing indicator not sent")
	}
	if len(f.queue.published) != 1 {
		t.Fatalf("expected 1 published job, got %d", len(f.queue.published))
	}

	job, err := f.repo.GetJobByID(ctx, f.queue.published[0])
	if err != nil {
		t.Fatalf("job row missing: %v", err)
	}
	if job.UserID != 204 || job.Prompt != "how much protein?" || job.Status != chat.JobQueued {
		t.Fatalf("unexpected job row: %+v", job)
	}
	if len(f.sender.messages) != 0 {
		t.Fatalf("reply is the worker's responsibility, got %v", f.sender.messages)
	}
}

func TestCreatePlan_StubLoops(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.d.Handle(ctx, Event{UserID: 205, Text: "/create_plan", Command: "create_plan"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := f.sender.lastText(t); got != ReplyPlanIntro {
		t.Fatalf("expected plan intro, got %q", got)
	}
	if f.states.m[205] != string(StateAwaitingPlanType) {
		t.Fatalf("expected awaiting_plan_type state")
	}

	// any text loops back to the intro; no other transition exists
	if err := f.d.Handle(ctx, Event{UserID: 205, Text: "Both"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := f.sender.lastText(t); got != ReplyPlanIntro {
		t.Fatalf("stub flow should re-send the intro, got %q", got)
	}
	if f.states.m[205] != string(StateAwaitingPlanType) {
		t.Fatalf("stub flow must not transition")
	}
}
