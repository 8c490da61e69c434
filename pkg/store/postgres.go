package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the database interface used by [Postgres]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres persists the career data model in PostgreSQL.
type Postgres struct {
	db DB
}

// NewPostgres wraps an existing connection or pool. Run Migrate against the
// same database before issuing queries.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

const resumeColumns = `id, user_id, title, full_name, email, phone, linkedin, github,
       summary, education, experience, skills, updated_at`

// ListResumes returns all resumes owned by userID, most recently updated
// first. An unknown user yields an empty slice, not an error.
func (s *Postgres) ListResumes(ctx context.Context, userID string) ([]Resume, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+resumeColumns+`
		FROM resumes
		WHERE user_id = $1
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list resumes: %w", err)
	}
	defer rows.Close()

	resumes := []Resume{}
	for rows.Next() {
		r, err := scanResume(rows)
		if err != nil {
			return nil, err
		}
		resumes = append(resumes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list resumes: %w", err)
	}
	return resumes, nil
}

// GetResume fetches one resume by ID. Returns ErrNotFound if it does not
// exist.
func (s *Postgres) GetResume(ctx context.Context, id string) (*Resume, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+resumeColumns+`
		FROM resumes
		WHERE id = $1`, id)

	r, err := scanResume(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// SaveResume upserts a resume. A resume with no ID gets a fresh one; an
// existing ID updates in place. The stored row, including the server-side
// updated_at, is written back into r.
func (s *Postgres) SaveResume(ctx context.Context, r *Resume) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Title == "" {
		r.Title = "Untitled Resume"
	}

	eduJSON, err := json.Marshal(emptySlice(r.Education))
	if err != nil {
		return fmt.Errorf("store: marshal education: %w", err)
	}
	expJSON, err := json.Marshal(emptySlice(r.Experience))
	if err != nil {
		return fmt.Errorf("store: marshal experience: %w", err)
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO resumes (
			id, user_id, title, full_name, email, phone, linkedin, github,
			summary, education, experience, skills
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, full_name = EXCLUDED.full_name,
			email = EXCLUDED.email, phone = EXCLUDED.phone,
			linkedin = EXCLUDED.linkedin, github = EXCLUDED.github,
			summary = EXCLUDED.summary, education = EXCLUDED.education,
			experience = EXCLUDED.experience, skills = EXCLUDED.skills,
			updated_at = now()
		RETURNING updated_at`,
		r.ID, r.UserID, r.Title, r.FullName, r.Email, r.Phone, r.LinkedIn, r.GitHub,
		r.Summary, eduJSON, expJSON, r.Skills,
	).Scan(&r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: save resume: %w", err)
	}
	return nil
}

// DeleteResume removes a resume by ID. Deleting a missing resume is not an
// error.
func (s *Postgres) DeleteResume(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM resumes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("store: delete resume %q: %w", id, err)
	}
	return nil
}

// UpsertUser synchronizes one account profile, keyed by ID.
func (s *Postgres) UpsertUser(ctx context.Context, u *User) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (id, email, full_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email, full_name = EXCLUDED.full_name
		RETURNING created_at`,
		u.ID, u.Email, u.FullName,
	).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert user: %w", err)
	}
	return nil
}

// RecordDownload inserts one export record and returns it with its assigned
// ID and timestamp.
func (s *Postgres) RecordDownload(ctx context.Context, d *Download) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO user_downloads (user_id, file_name, file_url)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		d.UserID, d.FileName, d.FileURL,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: record download: %w", err)
	}
	return nil
}

// ListDownloads returns a user's export records, newest first.
func (s *Postgres) ListDownloads(ctx context.Context, userID string) ([]Download, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, file_name, file_url, created_at
		FROM user_downloads
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list downloads: %w", err)
	}
	defer rows.Close()

	downloads := []Download{}
	for rows.Next() {
		var d Download
		if err := rows.Scan(&d.ID, &d.UserID, &d.FileName, &d.FileURL, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan download: %w", err)
		}
		downloads = append(downloads, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list downloads: %w", err)
	}
	return downloads, nil
}

func scanResume(row pgx.Row) (Resume, error) {
	var r Resume
	var eduJSON, expJSON []byte
	err := row.Scan(
		&r.ID, &r.UserID, &r.Title, &r.FullName, &r.Email, &r.Phone, &r.LinkedIn,
		&r.GitHub, &r.Summary, &eduJSON, &expJSON, &r.Skills, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Resume{}, err
		}
		return Resume{}, fmt.Errorf("store: scan resume: %w", err)
	}
	if len(eduJSON) > 0 {
		if err := json.Unmarshal(eduJSON, &r.Education); err != nil {
			return Resume{}, fmt.Errorf("store: unmarshal education: %w", err)
		}
	}
	if len(expJSON) > 0 {
		if err := json.Unmarshal(expJSON, &r.Experience); err != nil {
			return Resume{}, fmt.Errorf("store: unmarshal experience: %w", err)
		}
	}
	if r.Education == nil {
		r.Education = []Education{}
	}
	if r.Experience == nil {
		r.Experience = []Experience{}
	}
	return r, nil
}

func emptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
