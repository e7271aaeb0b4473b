package models

import "strings"

const (
	RoleCandidate = "candidate"
	RoleRecruiter = "recruiter"
)

// Profile is the subset of a user profile this service reads.
type Profile struct {
	UserID          string `db:"user_id" json:"user_id"`
	FirstName       string `db:"first_name" json:"first_name"`
	LastName        string `db:"last_name" json:"last_name"`
	Role            string `db:"role" json:"role"`
	CompanyName     string `db:"company_name" json:"company_name,omitempty"`
	Email           string `db:"email" json:"email"`
	ProfileImageURL string `db:"profile_image_url" json:"profile_image_url,omitempty"`
}

// DisplayName joins first and last name, falling back to the user id.
func (p Profile) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.UserID
	}
	return name
}

func (p Profile) IsCandidate() bool { return p.Role == RoleCandidate }
