package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/bsdetector/internal/model"
)

func newSearxServer(t *testing.T, n int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "general", r.URL.Query().Get("categories"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"query":"`+r.URL.Query().Get("q")+`","results":[`)
		for i := 0; i < n; i++ {
			if i > 0 {
				_, _ = fmt.Fprint(w, ",")
			}
			date := `null`
			if i == 0 {
				date = `"2024-03-15T10:00:00"`
			}
			_, _ = fmt.Fprintf(w, `{"url":"https://r%d.example","title":" Result %d ","content":"snippet %d","publishedDate":%s}`, i, i, i, date)
		}
		// duplicate of the first hit
		_, _ = fmt.Fprint(w, `,{"url":"https://r0.example","title":"dup","content":""}]}`)
	}))
}

func TestSearxNG_Search(t *testing.T) {
	server := newSearxServer(t, 3)
	defer server.Close()

	s := NewSearxNG(model.SearchConfig{BaseURL: server.URL + "/", DefaultLimit: 5, Timeout: 5 * time.Second}, "test", nil, nil)
	results, err := s.Search(context.Background(), "acme funding", 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Result 0", results[0].Title)
	assert.Equal(t, "https://r0.example", results[0].URL)
	assert.Equal(t, "snippet 0", results[0].Snippet)
	assert.Equal(t, AuthorityTertiary, results[0].Authority)
	require.NotNil(t, results[0].PublishedAt)
	assert.Equal(t, 2024, results[0].PublishedAt.Year())
	assert.Nil(t, results[1].PublishedAt)
}

func TestSearxNG_Limit(t *testing.T) {
	server := newSearxServer(t, 30)
	defer server.Close()

	s := NewSearxNG(model.SearchConfig{BaseURL: server.URL}, "test", nil, nil)

	results, err := s.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = s.Search(context.Background(), "q", -1)
	require.NoError(t, err)
	assert.Len(t, results, DefaultSearchLimit)

	results, err = s.Search(context.Background(), "q", 100)
	require.NoError(t, err)
	assert.Len(t, results, 20)
}

func TestSearxNG_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	s := NewSearxNG(model.SearchConfig{BaseURL: server.URL}, "test", nil, nil)

	_, err := s.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSearch))
	assert.True(t, errors.Is(err, ErrHTTPStatusNotOK))

	_, err = s.Search(context.Background(), "   ", 5)
	assert.True(t, errors.Is(err, ErrSearch))
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, 5, normalizeLimit(0, 0))
	assert.Equal(t, 7, normalizeLimit(0, 7))
	assert.Equal(t, 3, normalizeLimit(3, 7))
	assert.Equal(t, 20, normalizeLimit(50, 7))
}
