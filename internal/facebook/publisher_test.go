package facebook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyderes/facebook-auto-poster/internal/config"
	"github.com/cyderes/facebook-auto-poster/internal/models"
)

type graphStub struct {
	mu          sync.Mutex
	photoStatus int
	photoBody   string
	feedStatus  int
	feedBody    string
	photoCalls  int
	feedCalls   int
	uploaded    []byte
	filename    string
	published   string
	message     string
	media       string
	token       string
}

func (g *graphStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/page-1/photos", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.photoCalls++

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("source")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		g.uploaded, _ = io.ReadAll(file)
		g.filename = header.Filename
		g.published = r.FormValue("published")
		g.token = r.FormValue("access_token")

		w.WriteHeader(g.photoStatus)
		w.Write([]byte(g.photoBody))
	})
	mux.HandleFunc("/page-1/feed", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.feedCalls++

		assert.NoError(t, r.ParseForm())
		g.message = r.PostForm.Get("message")
		g.media = r.PostForm.Get("attached_media[0]")

		w.WriteHeader(g.feedStatus)
		w.Write([]byte(g.feedBody))
	})
	return mux
}

func newTestPublisher(t *testing.T, stub *graphStub) *Publisher {
	t.Helper()

	server := httptest.NewServer(stub.handler(t))
	t.Cleanup(server.Close)

	logger, _ := test.NewNullLogger()
	return NewPublisher(config.FacebookConfig{
		PageID:      "page-1",
		AccessToken: "token-abc",
		GraphURL:    server.URL,
		Timeout:     5 * time.Second,
	}, logger)
}

func TestPublisher_Publish(t *testing.T) {
	stub := &graphStub{
		photoStatus: http.StatusOK, photoBody: `{"id":"photo-9"}`,
		feedStatus: http.StatusOK, feedBody: `{"id":"page-1_post-7"}`,
	}
	pub := newTestPublisher(t, stub)
	image := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))

	result, err := pub.Publish(context.Background(), "Name: Jane Doe", "A1", image)

	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, "photo-9", result.PhotoID)
	assert.Equal(t, "page-1_post-7", result.PostID)

	assert.Equal(t, []byte("jpeg-bytes"), stub.uploaded)
	assert.Equal(t, "A1.jpg", stub.filename)
	assert.Equal(t, "false", stub.published)
	assert.Equal(t, "token-abc", stub.token)
	assert.Equal(t, "Name: Jane Doe", stub.message)

	var media map[string]string
	require.NoError(t, json.Unmarshal([]byte(stub.media), &media))
	assert.Equal(t, "photo-9", media["media_fbid"])
}

func TestPublisher_Publish_InvalidImage(t *testing.T) {
	stub := &graphStub{photoStatus: http.StatusOK, photoBody: `{"id":"p"}`, feedStatus: http.StatusOK, feedBody: `{"id":"f"}`}
	pub := newTestPublisher(t, stub)

	result, err := pub.Publish(context.Background(), "msg", "A1", "!!not base64!!")

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrImageDecode))
	assert.False(t, result.Success())
	assert.Equal(t, 0, stub.photoCalls)
}

func TestPublisher_Publish_UploadFailure(t *testing.T) {
	stub := &graphStub{
		photoStatus: http.StatusBadRequest,
		photoBody:   `{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`,
	}
	pub := newTestPublisher(t, stub)

	result, err := pub.Publish(context.Background(), "msg", "A1", "aW1n")

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUpload))
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "Invalid OAuth access token")
	assert.NotContains(t, err.Error(), "token-abc")
	assert.Equal(t, 0, stub.feedCalls)
	assert.Empty(t, result.PhotoID)
}

func TestPublisher_Publish_UploadMissingID(t *testing.T) {
	stub := &graphStub{photoStatus: http.StatusOK, photoBody: `{}`}
	pub := newTestPublisher(t, stub)

	_, err := pub.Publish(context.Background(), "msg", "A1", "aW1n")

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUpload))
	assert.Contains(t, err.Error(), "missing id")
}

func TestPublisher_Publish_FeedFailureDoesNotRetryUpload(t *testing.T) {
	stub := &graphStub{
		photoStatus: http.StatusOK, photoBody: `{"id":"photo-9"}`,
		feedStatus: http.StatusInternalServerError, feedBody: `oops`,
	}
	pub := newTestPublisher(t, stub)

	result, err := pub.Publish(context.Background(), "msg", "A1", "aW1n")

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrPublish))
	assert.Contains(t, err.Error(), "status 500")
	assert.Equal(t, "photo-9", result.PhotoID)
	assert.Equal(t, 1, stub.photoCalls)
	assert.Equal(t, 1, stub.feedCalls)
}

func TestDecodeImage(t *testing.T) {
	want := []byte("hello?")

	tests := []string{
		base64.StdEncoding.EncodeToString(want),
		base64.RawStdEncoding.EncodeToString(want),
		base64.URLEncoding.EncodeToString(want),
		"data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(want),
	}
	for _, in := range tests {
		got, err := DecodeImage(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := DecodeImage("   ")
	assert.True(t, errors.Is(err, models.ErrImageDecode))
}
