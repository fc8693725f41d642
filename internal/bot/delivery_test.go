package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/atomcoach/atom/internal/ai"
	"github.com/atomcoach/atom/internal/chat"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type countingProvider struct {
	calls int
	reply string
}

func (p *countingProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	_ = ctx
	_ = messages
	p.calls++
	return p.reply, nil
}

type deliveryFixture struct {
	dl     *Deliverer
	repo   *chat.Repo
	prov   *countingProvider
	sender *fakeSender
}

func newDeliveryFixture(t *testing.T) *deliveryFixture {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := chat.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	repo := chat.NewRepo(db)
	prov := &countingProvider{reply: "ok"}
	svc := chat.NewService(repo, chat.NewGateway(prov, 0), 12)
	sender := &fakeSender{}
	return &deliveryFixture{
		dl:     NewDeliverer(svc, sender),
		repo:   repo,
		prov:   prov,
		sender: sender,
	}
}

func (f *deliveryFixture) seedJob(t *testing.T, id string, userID int64, name string) {
	t.Helper()
	ctx := context.Background()
	if name != "" {
		if err := f.repo.SaveRecord(ctx, &chat.UserRecord{UserID: userID, FirstName: &name}); err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}
	job := &chat.DeliveryJob{ID: id, UserID: userID, Prompt: "how much protein?", Status: chat.JobQueued}
	if err := f.repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
}

func TestDeliver_SendsReplyAndSucceeds(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	f.seedJob(t, "01DLVTESTJOB00000000000300", 300, "Alex")

	retry, err := f.dl.Deliver(ctx, "01DLVTESTJOB00000000000300")
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if retry {
		t.Fatalf("successful delivery must not ask for a retry")
	}
	if got := f.sender.lastText(t); got != "ok" {
		t.Fatalf("expected the model reply, got %q", got)
	}

	job, err := f.repo.GetJobByID(ctx, "01DLVTESTJOB00000000000300")
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	if job.Status != chat.JobSucceeded {
		t.Fatalf("expected succeeded, got %q", job.Status)
	}
	if job.Reply == nil || *job.Reply != "ok" {
		t.Fatalf("reply not stored on the job row: %+v", job)
	}

	rec, err := f.repo.LoadRecord(ctx, 300)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if len(rec.History) != 2 {
		t.Fatalf("expected both turns persisted, got %d", len(rec.History))
	}
}

func TestDeliver_TransportFailureRetriesWithoutSecondCycle(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	f.seedJob(t, "01DLVTESTJOB00000000000301", 301, "Alex")
	f.sender.sendErr = errors.New("telegram: 502")

	retry, err := f.dl.Deliver(ctx, "01DLVTESTJOB00000000000301")
	if err == nil {
		t.Fatalf("expected an error from the failed send")
	}
	if !retry {
		t.Fatalf("transport failure must be reported as retryable")
	}
	if f.prov.calls != 1 {
		t.Fatalf("expected exactly one completion call, got %d", f.prov.calls)
	}

	job, err := f.repo.GetJobByID(ctx, "01DLVTESTJOB00000000000301")
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	if job.Reply == nil || *job.Reply != "ok" {
		t.Fatalf("reply must be stored before the send: %+v", job)
	}

	// second attempt resends the stored reply, no second completion call
	f.sender.sendErr = nil
	retry, err = f.dl.Deliver(ctx, "01DLVTESTJOB00000000000301")
	if err != nil || retry {
		t.Fatalf("redelivery should succeed, retry=%v err=%v", retry, err)
	}
	if f.prov.calls != 1 {
		t.Fatalf("redelivery must not re-run the completion cycle, calls=%d", f.prov.calls)
	}
	if got := f.sender.lastText(t); got != "ok" {
		t.Fatalf("expected the stored reply, got %q", got)
	}

	rec, err := f.repo.LoadRecord(ctx, 301)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if len(rec.History) != 2 {
		t.Fatalf("history must not grow on redelivery, got %d turns", len(rec.History))
	}

	job, err = f.repo.GetJobByID(ctx, "01DLVTESTJOB00000000000301")
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	if job.Status != chat.JobSucceeded {
		t.Fatalf("expected succeeded after redelivery, got %q", job.Status)
	}
}

func TestDeliver_NoProfileSendsCorrection(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	f.seedJob(t, "01DLVTESTJOB00000000000302", 302, "")

	retry, err := f.dl.Deliver(ctx, "01DLVTESTJOB00000000000302")
	if err != nil || retry {
		t.Fatalf("missing profile is not a job failure, retry=%v err=%v", retry, err)
	}
	if got := f.sender.lastText(t); got != ReplyUseStart {
		t.Fatalf("expected the re-onboarding instruction, got %q", got)
	}
	if f.prov.calls != 0 {
		t.Fatalf("no completion call expected without a profile, got %d", f.prov.calls)
	}

	job, err := f.repo.GetJobByID(ctx, "01DLVTESTJOB00000000000302")
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	if job.Status != chat.JobSucceeded {
		t.Fatalf("expected succeeded, got %q", job.Status)
	}
}
