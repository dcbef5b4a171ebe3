package extractdocumenttext

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"mednote-workers/internal/models"
)

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t *testing.T
}

func NewTestLogger(t *testing.T) *TestLogger { return &TestLogger{t: t} }

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, fields)
}

func (l *TestLogger) With(fields map[string]interface{}) Logger { return l }

// fakeExtractor implements TextExtractor
type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) ExtractText(ctx context.Context, document []byte, contentType string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// redisCache adapts a go-redis client to the Cache interface for tests
type redisCache struct {
	client *redis.Client
}

func (c *redisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

func newTestCache(t *testing.T) (*redisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &redisCache{client: client}, mr
}

func createTestConfig() *Config {
	return &Config{
		Timeout:      5 * time.Second,
		CacheEnabled: true,
		CacheTTL:     time.Hour,
	}
}

func pdfInput(content []byte) *Input {
	return &Input{
		PatientID:   "patient-1",
		HasDocument: true,
		Document: &models.NoteDocument{
			Content:     base64.StdEncoding.EncodeToString(content),
			ContentType: "application/pdf",
		},
	}
}

func TestHandler_Execute_ExtractsAndCaches(t *testing.T) {
	cache, mr := newTestCache(t)
	extractor := &fakeExtractor{text: "Patient presents with fever and cough."}
	handler := NewHandler(createTestConfig(), extractor, cache, NewTestLogger(t))

	docBytes := []byte("%PDF-1.4 sample document")
	output, err := handler.Execute(context.Background(), pdfInput(docBytes))

	assert.NoError(t, err)
	assert.Equal(t, "Patient presents with fever and cough.", output.NoteText)
	assert.False(t, output.Cached)
	assert.Equal(t, 1, extractor.calls)

	sum := sha256.Sum256(docBytes)
	cached, err := mr.Get(cacheKeyPrefix + hex.EncodeToString(sum[:]))
	assert.NoError(t, err)
	assert.Equal(t, "Patient presents with fever and cough.", cached)
}

func TestHandler_Execute_CacheHitSkipsExtraction(t *testing.T) {
	cache, mr := newTestCache(t)
	extractor := &fakeExtractor{text: "should not be called"}
	handler := NewHandler(createTestConfig(), extractor, cache, NewTestLogger(t))

	docBytes := []byte("%PDF-1.4 cached document")
	sum := sha256.Sum256(docBytes)
	mr.Set(cacheKeyPrefix+hex.EncodeToString(sum[:]), "cached extraction result")

	output, err := handler.Execute(context.Background(), pdfInput(docBytes))

	assert.NoError(t, err)
	assert.True(t, output.Cached)
	assert.Equal(t, "cached extraction result", output.NoteText)
	assert.Equal(t, 0, extractor.calls)
}

func TestHandler_Execute_TextPassthrough(t *testing.T) {
	cache, _ := newTestCache(t)
	extractor := &fakeExtractor{}
	handler := NewHandler(createTestConfig(), extractor, cache, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		NoteText:    "Typed clinical note.",
		HasDocument: false,
	})

	assert.NoError(t, err)
	assert.Equal(t, "Typed clinical note.", output.NoteText)
	assert.NotEmpty(t, output.TextHash)
	assert.Equal(t, 0, extractor.calls)
}

func TestHandler_Execute_ExtractionError(t *testing.T) {
	cache, _ := newTestCache(t)
	extractor := &fakeExtractor{err: errors.New("analyze returned status 500")}
	handler := NewHandler(createTestConfig(), extractor, cache, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), pdfInput([]byte("%PDF-1.4 doc")))

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrExtractionFailed))
	assert.Nil(t, output)
}

func TestHandler_Execute_ExtractionTimeout(t *testing.T) {
	cache, _ := newTestCache(t)
	extractor := &fakeExtractor{err: context.DeadlineExceeded}
	handler := NewHandler(createTestConfig(), extractor, cache, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), pdfInput([]byte("%PDF-1.4 doc")))

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrExtractionTimeout))
	assert.Nil(t, output)
}

func TestHandler_Execute_EmptyInput(t *testing.T) {
	cache, _ := newTestCache(t)
	handler := NewHandler(createTestConfig(), &fakeExtractor{}, cache, NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyDocument))
	assert.Nil(t, output)
}
