package models

import "time"

// Message represents a message posted to a thread.
type Message struct {
	ID         int64       `json:"id"`
	ThreadID   int64       `json:"thread_id"`
	SenderID   string      `json:"sender_id"`
	SenderName string      `json:"sender_name,omitempty"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"created_at"`
	JobContext *JobContext `json:"job_details,omitempty"`
}

// JobContext is a copy of a job posting taken when the message was sent.
// It is never refreshed from the live job record.
type JobContext struct {
	JobID          string `db:"job_id" json:"job_id"`
	JobTitle       string `db:"job_title" json:"job_title"`
	EmploymentType string `db:"employment_type" json:"employment_type,omitempty"`
	Location       string `db:"location" json:"location,omitempty"`
	Description    string `db:"description" json:"description,omitempty"`
}

// Clone copies the snapshot; nil stays nil.
func (j *JobContext) Clone() *JobContext {
	if j == nil {
		return nil
	}
	out := *j
	return &out
}

// Before reports whether m sorts before other in thread order.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// AppendResult is what a message store returns after a successful append.
type AppendResult struct {
	Message Message
	Thread  Thread
	// FirstContact is true when this was the sender's first message in the thread.
	FirstContact bool
}
