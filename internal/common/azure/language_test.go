package azure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mednote-workers/internal/common/config"
	"mednote-workers/internal/common/logger"
)

func newTestLanguageClient(endpoint string) *LanguageClient {
	return NewLanguageClient(config.LanguageConfig{
		Endpoint:     endpoint,
		Key:          "test-key",
		APIVersion:   "2022-05-15-preview",
		FHIRVersion:  "4.0.1",
		PollInterval: 10,
	}, logger.NewNoOpLogger())
}

func TestLanguageClient_AnalyzeHealthcare(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Operation-Location", server.URL+"/jobs/1")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jobId":"1","status":"succeeded","tasks":{"items":[{"kind":"HealthcareLROResults","status":"succeeded","results":{"documents":[{"id":"0","entities":[{"text":"metformin","category":"MedicationName"}]}]}}]}}`))
	}))
	defer server.Close()

	client := newTestLanguageClient(server.URL)

	result, err := client.AnalyzeHealthcare(context.Background(), []AnalysisDocument{
		{ID: "0", Language: "en", Text: "Continue metformin 500 mg."},
	})
	require.NoError(t, err)
	assert.Equal(t, JobStatusSucceeded, result.Status)
	require.Len(t, result.Tasks.Items, 1)
	require.Len(t, result.Tasks.Items[0].Results.Documents, 1)
	assert.Equal(t, "metformin", result.Tasks.Items[0].Results.Documents[0].Entities[0].Text)
}

func TestLanguageClient_PollAuthFailure(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Operation-Location", server.URL+"/jobs/1")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		// Auth error bodies carry no status field, so they must not be
		// mistaken for a still-running job.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"403","message":"Out of call volume quota"}}`))
	}))
	defer server.Close()

	client := newTestLanguageClient(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := client.AnalyzeHealthcare(ctx, []AnalysisDocument{
		{ID: "0", Language: "en", Text: "note"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}
