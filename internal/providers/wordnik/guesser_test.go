package wordnik

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestNewGuesserDefaults(t *testing.T) {
	t.Parallel()

	g := NewGuesser(Config{})
	if g.cfg.APIBaseURL != "https://api.wordnik.com/v4" {
		t.Fatalf("unexpected base url: %q", g.cfg.APIBaseURL)
	}
	if g.cfg.MinCorpusCount != 1000 {
		t.Fatalf("unexpected min corpus count: %d", g.cfg.MinCorpusCount)
	}
}

func TestGuessRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewGuesser(Config{}).Guess(context.Background(), "hel", 8)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestGuessEmptyPrefixSkipsRequest(t *testing.T) {
	t.Parallel()

	words, err := NewGuesser(Config{}).Guess(context.Background(), "  ", 8)
	if err != nil || words != nil {
		t.Fatalf("expected no guesses, got %v %v", words, err)
	}
}

func TestGuessQueriesSearchAndDropsEcho(t *testing.T) {
	t.Parallel()

	requests := make(chan *url.URL, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.URL
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"searchResults":[{"word":"hel*","count":0},{"word":"hello","count":5000},{"word":"","count":1},{"word":"help","count":9000},{"word":"helmet","count":2000}]}`))
	}))
	defer server.Close()

	g := NewGuesser(Config{APIKey: "k", APIBaseURL: server.URL + "/v4/"})
	words, err := g.Guess(context.Background(), "hel", 2)
	if err != nil {
		t.Fatalf("guess failed: %v", err)
	}
	if strings.Join(words, ",") != "hello,help" {
		t.Fatalf("unexpected words %v", words)
	}
	got := <-requests
	if got.Path != "/v4/words.json/search/hel*" {
		t.Fatalf("unexpected path %q", got.Path)
	}
	for _, want := range []string{"minCorpusCount=1000", "caseSensitive=false", "limit=3", "api_key=k"} {
		if !strings.Contains(got.RawQuery, want) {
			t.Fatalf("query %q missing %q", got.RawQuery, want)
		}
	}
}

func TestGuessNonOKStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewGuesser(Config{APIKey: "k", APIBaseURL: server.URL}).Guess(context.Background(), "x", 8)
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestGuessBadJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{`))
	}))
	defer server.Close()

	_, err := NewGuesser(Config{APIKey: "k", APIBaseURL: server.URL}).Guess(context.Background(), "x", 8)
	if err == nil || !strings.Contains(err.Error(), "decode") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestExtractWordsOnlyEcho(t *testing.T) {
	t.Parallel()

	resp := searchResponse{}
	resp.SearchResults = append(resp.SearchResults, struct {
		Word  string `json:"word"`
		Count int    `json:"count"`
	}{Word: "zz*"})
	if got := extractWords(resp, 8); got != nil {
		t.Fatalf("expected no words, got %v", got)
	}
}
