package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/careerdev-ai/careerdev/pkg/advisor"
	"github.com/careerdev-ai/careerdev/pkg/store"
)

var testLogger = slog.Default()

// fakeAdvisor replays canned streams and records the last call.
type fakeAdvisor struct {
	chunks  []string
	sources []advisor.Source
	err     error

	lastService string
	lastMessage string
	lastDeep    bool
	oppResult   *advisor.OpportunityResult
	oppErr      error
}

func (f *fakeAdvisor) stream() *advisor.TextStream {
	return advisor.NewStaticStream(f.chunks, f.sources, f.err)
}

func (f *fakeAdvisor) CareerTipStream(context.Context) *advisor.TextStream {
	f.lastService = "tip"
	return f.stream()
}

func (f *fakeAdvisor) ChatStream(_ context.Context, message string, _ []advisor.HistoryEntry, useThinking bool) *advisor.TextStream {
	f.lastService = "chat"
	f.lastMessage = message
	f.lastDeep = useThinking
	return f.stream()
}

func (f *fakeAdvisor) ResumeSectionStream(_ context.Context, prompt string) *advisor.TextStream {
	f.lastService = "section"
	f.lastMessage = prompt
	return f.stream()
}

func (f *fakeAdvisor) AnalyzeResumeStream(_ context.Context, content advisor.ResumeContent, deep bool) *advisor.TextStream {
	f.lastService = "analyze"
	f.lastMessage = content.Text
	f.lastDeep = deep
	return f.stream()
}

func (f *fakeAdvisor) IndustryQAStream(_ context.Context, field, question string) *advisor.TextStream {
	f.lastService = "qa"
	f.lastMessage = field + "/" + question
	return f.stream()
}

func (f *fakeAdvisor) SearchOpportunities(_ context.Context, query, location string, kind advisor.OpportunityKind) (*advisor.OpportunityResult, error) {
	f.lastService = "opportunities"
	f.lastMessage = strings.Join([]string{query, location, string(kind)}, "/")
	return f.oppResult, f.oppErr
}

// fakeStore is an in-memory ResumeStore.
type fakeStore struct {
	resumes   map[string]store.Resume
	users     map[string]store.User
	downloads []store.Download
	failWith  error
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		resumes: map[string]store.Resume{},
		users:   map[string]store.User{},
	}
}

func (f *fakeStore) ListResumes(_ context.Context, userID string) ([]store.Resume, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := []store.Resume{}
	for _, r := range f.resumes {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetResume(_ context.Context, id string) (*store.Resume, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	r, ok := f.resumes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (f *fakeStore) SaveResume(_ context.Context, r *store.Resume) error {
	if f.failWith != nil {
		return f.failWith
	}
	if r.ID == "" {
		f.nextID++
		r.ID = "generated-" + strings.Repeat("0", f.nextID)
	}
	f.resumes[r.ID] = *r
	return nil
}

func (f *fakeStore) DeleteResume(_ context.Context, id string) error {
	if f.failWith != nil {
		return f.failWith
	}
	delete(f.resumes, id)
	return nil
}

func (f *fakeStore) UpsertUser(_ context.Context, u *store.User) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.users[u.ID] = *u
	return nil
}

func (f *fakeStore) RecordDownload(_ context.Context, d *store.Download) error {
	if f.failWith != nil {
		return f.failWith
	}
	d.ID = int64(len(f.downloads) + 1)
	f.downloads = append(f.downloads, *d)
	return nil
}

func (f *fakeStore) ListDownloads(_ context.Context, userID string) ([]store.Download, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := []store.Download{}
	for _, d := range f.downloads {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

// fakeBlob records uploads.
type fakeBlob struct {
	lastName string
	lastData []byte
	err      error
}

func (f *fakeBlob) UploadPDF(_ context.Context, fileName string, data []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.lastName = fileName
	f.lastData = data
	return "https://blob.example/pdfs/" + fileName, nil
}

var errBoom = errors.New("backend down")
