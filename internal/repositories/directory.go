package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrJobNotFound     = errors.New("job not found")
)

// ProfileDirectory resolves user profiles owned by the profile service.
type ProfileDirectory interface {
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
}

// JobDirectory resolves job postings owned by the jobs service.
type JobDirectory interface {
	GetJob(ctx context.Context, jobID string) (models.JobContext, error)
}

// ProfileRepo reads the shared profiles table.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// GetProfile fetches one profile.
func (r *ProfileRepo) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	var p models.Profile
	err := r.db.GetContext(ctx, &p, `SELECT user_id, first_name, last_name, role,
            COALESCE(company_name, '') AS company_name, email, COALESCE(profile_image_url, '') AS profile_image_url
        FROM profiles WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	return p, err
}

// JobRepo reads the shared jobs table.
type JobRepo struct {
	db *sqlx.DB
}

// NewJobRepo constructs a JobRepo.
func NewJobRepo(db *sqlx.DB) *JobRepo {
	return &JobRepo{db: db}
}

// GetJob copies the job fields a message snapshot carries.
func (r *JobRepo) GetJob(ctx context.Context, jobID string) (models.JobContext, error) {
	var job models.JobContext
	err := r.db.GetContext(ctx, &job, `SELECT id AS job_id, title AS job_title,
            COALESCE(employment_type, '') AS employment_type, COALESCE(location, '') AS location,
            COALESCE(description, '') AS description
        FROM jobs WHERE id=$1`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.JobContext{}, ErrJobNotFound
	}
	return job, err
}
