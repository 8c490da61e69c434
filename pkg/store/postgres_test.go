package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeRows struct {
	data [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(r.data[r.idx-1], dest)
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.idx-1], nil }

func assign(row []any, dest []any) error {
	if len(dest) != len(row) {
		return errors.New("column count mismatch")
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int64:
			*d = v.(int64)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return errors.New("unsupported scan destination")
		}
	}
	return nil
}

// fakeDB scripts query results keyed by a substring of the SQL.
type fakeDB struct {
	rows    map[string][][]any
	rowErr  error
	lastSQL string
	args    []any
}

func (f *fakeDB) match(sql string) [][]any {
	for key, data := range f.rows {
		if strings.Contains(sql, key) {
			return data
		}
	}
	return nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL, f.args = sql, args
	data := f.match(sql)
	return fakeRow{scan: func(dest ...any) error {
		if f.rowErr != nil {
			return f.rowErr
		}
		if len(data) == 0 {
			return pgx.ErrNoRows
		}
		return assign(data[0], dest)
	}}
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.lastSQL, f.args = sql, args
	return &fakeRows{data: f.match(sql)}, nil
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL, f.args = sql, args
	return pgconn.CommandTag{}, nil
}

func resumeRow(id, userID string) []any {
	edu, _ := json.Marshal([]Education{{ID: "e1", School: "MIT", Degree: "BSc"}})
	exp, _ := json.Marshal([]Experience{})
	return []any{id, userID, "Backend Resume", "Ada Lovelace", "ada@example.com",
		"555-0100", "linkedin.com/in/ada", "github.com/ada", "Engineer.",
		edu, exp, "Go, SQL", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func TestGetResume(t *testing.T) {
	db := &fakeDB{rows: map[string][][]any{"FROM resumes": {resumeRow("r1", "u1")}}}
	s := NewPostgres(db)

	r, err := s.GetResume(context.Background(), "r1")
	if err != nil {
		t.Fatalf("GetResume: %v", err)
	}
	if r.ID != "r1" || r.UserID != "u1" || r.Title != "Backend Resume" {
		t.Fatalf("resume = %+v", r)
	}
	if len(r.Education) != 1 || r.Education[0].School != "MIT" {
		t.Fatalf("education not decoded: %+v", r.Education)
	}
	if r.Experience == nil || len(r.Experience) != 0 {
		t.Fatalf("experience = %+v, want empty non-nil", r.Experience)
	}
}

func TestGetResumeNotFound(t *testing.T) {
	s := NewPostgres(&fakeDB{})
	if _, err := s.GetResume(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListResumes(t *testing.T) {
	db := &fakeDB{rows: map[string][][]any{"FROM resumes": {resumeRow("r1", "u1"), resumeRow("r2", "u1")}}}
	s := NewPostgres(db)

	resumes, err := s.ListResumes(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListResumes: %v", err)
	}
	if len(resumes) != 2 {
		t.Fatalf("got %d resumes, want 2", len(resumes))
	}
	if !strings.Contains(db.lastSQL, "ORDER BY updated_at DESC") {
		t.Fatalf("listing not ordered by recency:\n%s", db.lastSQL)
	}
}

func TestSaveResumeAssignsIDAndDefaults(t *testing.T) {
	db := &fakeDB{rows: map[string][][]any{"INSERT INTO resumes": {{time.Now()}}}}
	s := NewPostgres(db)

	r := &Resume{UserID: "u1"}
	if err := s.SaveResume(context.Background(), r); err != nil {
		t.Fatalf("SaveResume: %v", err)
	}
	if r.ID == "" {
		t.Fatalf("no ID assigned")
	}
	if r.Title != "Untitled Resume" {
		t.Fatalf("title = %q, want default", r.Title)
	}
	if r.UpdatedAt.IsZero() {
		t.Fatalf("updated_at not written back")
	}
	if !strings.Contains(db.lastSQL, "ON CONFLICT (id) DO UPDATE") {
		t.Fatalf("save is not an upsert:\n%s", db.lastSQL)
	}
}

func TestSaveResumeKeepsExistingID(t *testing.T) {
	db := &fakeDB{rows: map[string][][]any{"INSERT INTO resumes": {{time.Now()}}}}
	s := NewPostgres(db)

	r := &Resume{ID: "existing", UserID: "u1", Title: "Kept"}
	if err := s.SaveResume(context.Background(), r); err != nil {
		t.Fatalf("SaveResume: %v", err)
	}
	if r.ID != "existing" {
		t.Fatalf("ID rewritten to %q", r.ID)
	}
	if db.args[0] != "existing" {
		t.Fatalf("upsert not keyed by the given ID: %v", db.args[0])
	}
}

func TestUpsertUser(t *testing.T) {
	db := &fakeDB{rows: map[string][][]any{"INSERT INTO users": {{time.Now()}}}}
	s := NewPostgres(db)

	u := &User{ID: "u1", Email: "ada@example.com", FullName: "Ada Lovelace"}
	if err := s.UpsertUser(context.Background(), u); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if u.CreatedAt.IsZero() {
		t.Fatalf("created_at not written back")
	}
}

func TestRecordAndListDownloads(t *testing.T) {
	now := time.Now()
	db := &fakeDB{rows: map[string][][]any{
		"INSERT INTO user_downloads": {{int64(7), now}},
		"FROM user_downloads":        {{int64(7), "u1", "resume.pdf", "https://blob/x.pdf", now}},
	}}
	s := NewPostgres(db)

	d := &Download{UserID: "u1", FileName: "resume.pdf", FileURL: "https://blob/x.pdf"}
	if err := s.RecordDownload(context.Background(), d); err != nil {
		t.Fatalf("RecordDownload: %v", err)
	}
	if d.ID != 7 {
		t.Fatalf("ID = %d, want 7", d.ID)
	}

	downloads, err := s.ListDownloads(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListDownloads: %v", err)
	}
	if len(downloads) != 1 || downloads[0].FileURL != "https://blob/x.pdf" {
		t.Fatalf("downloads = %+v", downloads)
	}
}
