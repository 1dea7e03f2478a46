package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/dkurilov/paratrans/internal/checkpoint"
	"github.com/dkurilov/paratrans/internal/config"
	"github.com/dkurilov/paratrans/internal/jobs"
	"github.com/dkurilov/paratrans/internal/service"
	"github.com/dkurilov/paratrans/internal/translator"
)

type nopStore struct{}

func (nopStore) Load(context.Context, string) (*checkpoint.Job, bool, error) { return nil, false, nil }
func (nopStore) UpsertParagraph(context.Context, string, int, string, string, checkpoint.JobMeta) error {
	return nil
}
func (nopStore) Delete(context.Context, string) error { return nil }

type nopTranslator struct{}

func (nopTranslator) TranslateParagraph(_ context.Context, req translator.Request) (string, error) {
	return req.Text, nil
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		Translate: config.TranslateConfig{
			TargetLanguage: language.Russian,
			WorkerCount:    1,
			MaxRetries:     1,
		},
		Segment: config.SegmentConfig{MinLength: 10, MaxSize: 500},
		Pipeline: config.PipelineConfig{
			InboxDir:  filepath.Join(root, "inbox"),
			OutputDir: filepath.Join(root, "output"),
		},
	}
	cfg.LLM.Model = "test/model"

	queue := jobs.NewQueue(1, nil)
	svc := service.New(cfg, nopStore{}, queue, nopTranslator{}, nil)
	return NewServer(svc, queue), root
}

func writeTestDoc(t *testing.T, root string) string {
	t.Helper()
	path := filepath.Join(root, "essay.txt")
	content := "A reasonably long paragraph of text that the segmenter will accept as is."
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestServer_ListJobsEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var list []jobs.TranslationJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)
}

func TestServer_EnqueueJob(t *testing.T) {
	srv, root := newTestServer(t)
	path := writeTestDoc(t, root)

	body := `{"document_path":"` + path + `","target_lang":"ru"}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Created bool                `json:"created"`
		Job     jobs.TranslationJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Created)
	assert.Equal(t, path, resp.Job.Payload.DocumentPath)

	// Re-posting the same document dedupes.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Created)

	// The job is retrievable by ID.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+resp.Job.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_EnqueueJob_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_JobNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/job-999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StopJobNotRunning(t *testing.T) {
	srv, root := newTestServer(t)
	path := writeTestDoc(t, root)

	body := `{"document_path":"` + path + `"}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Job jobs.TranslationJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// Queue workers never started, so the job is still pending.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/"+resp.Job.ID+"/stop", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_Progress(t *testing.T) {
	srv, root := newTestServer(t)
	path := writeTestDoc(t, root)

	body := `{"document_path":"` + path + `"}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Job jobs.TranslationJob `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+resp.Job.ID+"/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var progress struct {
		JobID   string `json:"job_id"`
		Running bool   `json:"running"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	assert.Equal(t, resp.Job.ID, progress.JobID)
	assert.False(t, progress.Running)
}

func TestServer_Estimate(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/estimate",
		strings.NewReader(`{"text":"some text worth estimating for translation cost"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		InputTokens int               `json:"input_tokens"`
		Estimates   []json.RawMessage `json:"estimates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Positive(t, resp.InputTokens)
	assert.NotEmpty(t, resp.Estimates)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/estimate", strings.NewReader(`{"text":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_JobStream(t *testing.T) {
	srv, root := newTestServer(t)
	path := writeTestDoc(t, root)

	body := `{"document_path":"` + path + `","target_lang":"ru"}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/stream", nil).WithContext(ctx)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(rec.Body.String(), "data: "))

	// The snapshot carries the queue record with its translation progress.
	line := strings.TrimPrefix(strings.SplitN(rec.Body.String(), "\n", 2)[0], "data: ")
	var snapshot []struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Done    int    `json:"done"`
		Total   int    `json:"total"`
		Running bool   `json:"running"`
	}
	require.NoError(t, json.Unmarshal([]byte(line), &snapshot))
	require.Len(t, snapshot, 1)
	assert.NotEmpty(t, snapshot[0].ID)
	assert.False(t, snapshot[0].Running)
	assert.Zero(t, snapshot[0].Done)
}
