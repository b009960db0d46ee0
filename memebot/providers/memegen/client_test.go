package memegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

func TestEscape(t *testing.T) {
	cases := map[string]string{
		"":                "_",
		"hello world":     "hello_world",
		"snake_case":      "snake__case",
		"a-b":             "a--b",
		"why?":            "why~q",
		"R&D 100%":        "R~aD_100~p",
		"#1 a/b\\c":       "~h1_a~sb~bc",
		"<tag>":           "~ltag~g",
		`say "hi"`:        "say_''hi''",
		"line\nbreak":     "line~nbreak",
		"ALREADY~ESCAPED": "ALREADY~ESCAPED",
	}
	for in, want := range cases {
		assert.Equal(t, want, Escape(in), "escape %q", in)
	}
}

func TestURLQueryEscapesBackground(t *testing.T) {
	c := New(Config{BaseURL: "https://memes.test/"}, nil)
	got := c.URL("https://cdn.test/cat.jpg?x=1&y=2", "TOP TEXT", "")
	assert.Equal(t,
		"https://memes.test/images/custom/TOP_TEXT/_.png?background=https%3A%2F%2Fcdn.test%2Fcat.jpg%3Fx%3D1%26y%3D2",
		got)
}

func newImageServer(t *testing.T, contentType string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write(pngBytes)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRenderThenDownload(t *testing.T) {
	srv, _ := newImageServer(t, "image/png", http.StatusOK)
	c := New(Config{BaseURL: srv.URL}, nil)
	ctx := context.Background()

	ref, err := c.Render(ctx, "https://cdn.test/cat.jpg", "TOP", "BOTTOM")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, srv.URL+"/images/custom/TOP/BOTTOM.png?background="))

	body, err := c.Download(ctx, ref)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
}

func TestRenderRejectsNonImage(t *testing.T) {
	srv, _ := newImageServer(t, "text/html; charset=utf-8", http.StatusOK)
	c := New(Config{BaseURL: srv.URL}, nil)
	_, err := c.Render(context.Background(), "ref", "a", "b")
	require.ErrorIs(t, err, ErrNotImage)
}

func TestRenderRejectsErrorStatus(t *testing.T) {
	srv, _ := newImageServer(t, "image/png", http.StatusBadGateway)
	c := New(Config{BaseURL: srv.URL}, nil)
	_, err := c.Render(context.Background(), "ref", "a", "b")
	require.Error(t, err)
}

func TestRenderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL, RenderTimeout: 50 * time.Millisecond}, nil)
	_, err := c.Render(context.Background(), "ref", "a", "b")
	require.Error(t, err)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv, hits := newImageServer(t, "image/png", http.StatusInternalServerError)
	c := New(Config{BaseURL: srv.URL}, nil)
	for i := 0; i < 5; i++ {
		_, err := c.Render(context.Background(), "ref", "a", "b")
		require.Error(t, err)
	}
	_, err := c.Render(context.Background(), "ref", "a", "b")
	require.Error(t, err)
	assert.Equal(t, int32(5), hits.Load())
}

func TestRejectedBackgroundsDoNotOpenBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Query().Get("background"), "https://") {
			http.Error(w, "bad background", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL}, nil)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := c.Render(ctx, "AgACAgIAAxkBAAIB-telegram-file-id", "a", "b")
		var status *StatusError
		require.ErrorAs(t, err, &status)
		assert.Equal(t, http.StatusBadRequest, status.Code)
	}
	ref, err := c.Render(ctx, "https://cdn.test/cat.jpg", "a", "b")
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
}

func TestRejectedRequest(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want bool
	}{
		{&StatusError{Code: 400}, true},
		{&StatusError{Code: 404}, true},
		{&StatusError{Code: 429}, false},
		{&StatusError{Code: 502}, false},
		{fmt.Errorf("wrapped: %w", ErrNotImage), true},
		{context.Canceled, true},
		{context.DeadlineExceeded, false},
		{errors.New("connection refused"), false},
	} {
		assert.Equal(t, tc.want, rejectedRequest(tc.err), "%v", tc.err)
	}
}

func TestDownloadSniffsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	defer srv.Close()
	c := New(Config{}, nil)
	_, err := c.Download(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrNotImage)
}

func TestDownloadEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
	}))
	defer srv.Close()
	_, err := New(Config{}, nil).Download(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrEmptyBody)
}

func TestProbeUsesTemplate(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()
	require.NoError(t, New(Config{BaseURL: srv.URL}, nil).Probe(context.Background()))
	assert.Equal(t, probeTemplate, path.Load())
}
