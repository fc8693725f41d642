package chat

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message exchange unit. The persisted record only ever holds
// user and assistant turns; the system turn is compiled per request.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserRecord is the full per-user state: profile plus ordered history,
// oldest first. Mutations go through full read-modify-write only.
type UserRecord struct {
	UserID    int64
	FirstName *string
	History   []Turn
}

// Onboarded reports whether the name-collection step has completed.
func (r *UserRecord) Onboarded() bool {
	return r != nil && r.FirstName != nil && *r.FirstName != ""
}

// userRow is the storage shape; history is a JSON column so the record is
// written and read as one unit.
type userRow struct {
	UserID    int64          `gorm:"primaryKey;autoIncrement:false"`
	FirstName *string        `gorm:"type:varchar(64)"`
	History   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRow) TableName() string { return "user_records" }

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// DeliveryJob is one queued reply cycle for one inbound user message.
type DeliveryJob struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID int64  `gorm:"index;not null"`
	Prompt string `gorm:"type:text;not null"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled once the completion cycle has run, so a redelivered job resends
	// the stored text instead of running the cycle again.
	Reply *string `gorm:"type:text"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DeliveryJob) TableName() string { return "delivery_jobs" }
