// Package store persists resumes, user profiles, and download records in
// PostgreSQL. Structured resume sub-fields (education, experience) are
// serialized as JSONB.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup targets a row that does not exist.
var ErrNotFound = errors.New("store: not found")

// Education is one schooling entry on a resume.
type Education struct {
	ID        string `json:"id"`
	School    string `json:"school"`
	Degree    string `json:"degree"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	GPA       string `json:"gpa"`
}

// Experience is one employment entry on a resume.
type Experience struct {
	ID               string `json:"id"`
	Company          string `json:"company"`
	Role             string `json:"role"`
	StartDate        string `json:"startDate"`
	EndDate          string `json:"endDate"`
	Responsibilities string `json:"responsibilities"`
}

// Resume is one stored resume document.
type Resume struct {
	ID         string       `json:"id"`
	UserID     string       `json:"userId"`
	Title      string       `json:"title"`
	FullName   string       `json:"fullName"`
	Email      string       `json:"email"`
	Phone      string       `json:"phone"`
	LinkedIn   string       `json:"linkedin"`
	GitHub     string       `json:"github"`
	Summary    string       `json:"summary"`
	Education  []Education  `json:"education"`
	Experience []Experience `json:"experience"`
	Skills     string       `json:"skills"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// User is one account profile synchronized from the auth layer.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
}

// Download is one record of an exported resume document.
type Download struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	FileName  string    `json:"fileName"`
	FileURL   string    `json:"fileUrl"`
	CreatedAt time.Time `json:"createdAt"`
}
