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

func newTestDocClient(endpoint string) *DocumentIntelligenceClient {
	return NewDocumentIntelligenceClient(config.DocumentIntelligenceConfig{
		Endpoint:     endpoint,
		Key:          "test-key",
		ModelID:      "prebuilt-document",
		APIVersion:   "2023-07-31",
		PollInterval: 10,
	}, logger.NewNoOpLogger())
}

func TestDocumentIntelligenceClient_ExtractText(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Operation-Location", server.URL+"/operations/1")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"succeeded","analyzeResult":{"pages":[{"pageNumber":1,"lines":[{"content":"Patient stable."},{"content":"Continue metformin."}]}]}}`))
	}))
	defer server.Close()

	client := newTestDocClient(server.URL)

	text, err := client.ExtractText(context.Background(), []byte("%PDF-"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "Patient stable. Continue metformin.", text)
}

func TestDocumentIntelligenceClient_PollAuthFailure(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Operation-Location", server.URL+"/operations/1")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		// Auth error bodies carry no status field, so they must not be
		// mistaken for a still-running operation.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"401","message":"Access denied due to invalid subscription key"}}`))
	}))
	defer server.Close()

	client := newTestDocClient(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := client.ExtractText(ctx, []byte("%PDF-"), "application/pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestDocumentIntelligenceClient_AnalysisFailed(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Operation-Location", server.URL+"/operations/1")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"failed","error":{"code":"InvalidContent","message":"The file is corrupted"}}`))
	}))
	defer server.Close()

	client := newTestDocClient(server.URL)

	_, err := client.ExtractText(context.Background(), []byte("junk"), "application/pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidContent")
}
