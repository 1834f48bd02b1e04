package models

import (
	"fmt"
	"time"
)

// UserTask is one user's attempt at one task.
// ActiveSlot is set while the assignment is live so the unique index
// admits a single live assignment per (user, task); it is cleared on expiry.
type UserTask struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	TaskID       uint       `gorm:"not null;index" json:"task_id"`
	Status       string     `gorm:"size:20;not null;index" json:"status"`
	ActiveSlot   *string    `gorm:"uniqueIndex;size:64" json:"-"`
	PointsEarned *int64     `json:"points_earned"`
	CompletedAt  *time.Time `json:"completed_at"`
	SubmissionID *uint      `json:"submission_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Task *Task `gorm:"foreignKey:TaskID" json:"task,omitempty"`
}

func (UserTask) TableName() string { return "user_tasks" }

func ActiveSlotFor(userID, taskID uint) string {
	return fmt.Sprintf("%d:%d", userID, taskID)
}

// TaskSubmission is created by the user and reviewed at most once.
type TaskSubmission struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserTaskID      uint       `gorm:"not null;index" json:"user_task_id"`
	ScreenshotURL   string     `gorm:"size:512" json:"screenshot_url"`
	SubmissionNotes string     `gorm:"type:text" json:"submission_notes"`
	SubmittedAt     time.Time  `gorm:"not null" json:"submitted_at"`
	ReviewedBy      *string    `gorm:"size:64" json:"reviewed_by"`
	ReviewedAt      *time.Time `json:"reviewed_at"`
	AdminNotes      *string    `gorm:"type:text" json:"admin_notes"`
	CreatedAt       time.Time  `json:"created_at"`

	UserTask *UserTask `gorm:"foreignKey:UserTaskID" json:"user_task,omitempty"`
}

func (TaskSubmission) TableName() string { return "task_submissions" }
