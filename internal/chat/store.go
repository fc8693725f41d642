package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// AutoMigrate creates the backing tables lazily on first use.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&userRow{}, &DeliveryJob{})
}

// LoadRecord returns the stored record for userID, or the default record
// {first_name: nil, history: []} when none exists. A row with unreadable
// history is treated the same as a missing row: defaults win, no error.
func (r *Repo) LoadRecord(ctx context.Context, userID int64) (*UserRecord, error) {
	var row userRow
	err := r.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &UserRecord{UserID: userID, History: []Turn{}}, nil
		}
		return nil, err
	}

	rec := &UserRecord{UserID: userID, FirstName: row.FirstName, History: []Turn{}}
	if len(row.History) > 0 {
		if err := json.Unmarshal(row.History, &rec.History); err != nil {
			log.Printf("user record corrupt, using defaults user_id=%d err=%v", userID, err)
			return &UserRecord{UserID: userID, History: []Turn{}}, nil
		}
	}
	if rec.History == nil {
		rec.History = []Turn{}
	}
	return rec, nil
}

// SaveRecord writes the full record, overwriting any prior value.
func (r *Repo) SaveRecord(ctx context.Context, rec *UserRecord) error {
	history := rec.History
	if history == nil {
		history = []Turn{}
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return err
	}

	row := userRow{
		UserID:    rec.UserID,
		FirstName: rec.FirstName,
		History:   raw,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// Job CRUD
func (r *Repo) CreateJob(ctx context.Context, job *DeliveryJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*DeliveryJob, error) {
	var j DeliveryJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&DeliveryJob{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) SetJobReply(ctx context.Context, id string, reply string) error {
	return r.db.WithContext(ctx).Model(&DeliveryJob{}).
		Where("id = ?", id).
		Update("reply", reply).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&DeliveryJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobSucceeded,
			"error":  nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&DeliveryJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
		}).Error
}
