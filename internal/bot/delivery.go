package bot

import (
	"context"
	"errors"

	"github.com/atomcoach/atom/internal/chat"
)

// Deliverer runs queued reply jobs for the worker process. The generated
// reply is stored on the job row before the send, so a redelivered job
// resends the stored text instead of running the completion cycle again.
type Deliverer struct {
	svc    *chat.Service
	sender Sender
}

func NewDeliverer(svc *chat.Service, sender Sender) *Deliverer {
	return &Deliverer{svc: svc, sender: sender}
}

// Deliver processes one job. retry reports a transient transport failure
// worth another delivery attempt; any other error is final. The conversation
// service already degrades model failures to the fixed fallback text, so only
// storage and transport errors surface here.
func (d *Deliverer) Deliver(ctx context.Context, jobID string) (retry bool, err error) {
	_ = d.svc.MarkJobRunning(ctx, jobID)

	job, err := d.svc.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}

	var reply string
	if job.Reply != nil {
		reply = *job.Reply
	} else {
		reply, err = d.svc.Converse(ctx, job.UserID, job.Prompt)
		if err != nil {
			if !errors.Is(err, chat.ErrNoProfile) {
				return false, err
			}
			// The record lost its profile between enqueue and processing;
			// answer with the corrective instruction instead of failing.
			reply = ReplyUseStart
		}
		if err := d.svc.SetJobReply(ctx, jobID, reply); err != nil {
			return false, err
		}
	}

	if err := d.sender.SendMessage(ctx, job.UserID, reply); err != nil {
		return true, err
	}

	return false, d.svc.MarkJobSucceeded(ctx, jobID)
}
