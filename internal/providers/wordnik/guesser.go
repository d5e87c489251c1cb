// Package wordnik completes partial words with the Wordnik search API.
package wordnik

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dwadden/commboard/internal/ports"
)

var ErrMissingAPIKey = errors.New("WORDNIK_API_KEY is not configured")

// Config controls the Wordnik client.
type Config struct {
	APIKey         string
	APIBaseURL     string
	MinCorpusCount int
	Timeout        time.Duration
}

// Guesser implements ports.WordGuesser.
type Guesser struct {
	cfg    Config
	client *http.Client
}

var _ ports.WordGuesser = (*Guesser)(nil)

func NewGuesser(cfg Config) *Guesser {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.wordnik.com/v4"
	}
	if cfg.MinCorpusCount <= 0 {
		cfg.MinCorpusCount = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Guesser{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Guess returns up to limit completions of prefix. A wildcard is appended so
// completed words still produce suggestions.
func (g *Guesser) Guess(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || limit <= 0 {
		return nil, nil
	}
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	searchURL, err := buildSearchURL(g.cfg, prefix, limit)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build wordnik request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wordnik request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read wordnik response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wordnik returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode wordnik response: %w", err)
	}
	return extractWords(parsed, limit), nil
}

type searchResponse struct {
	SearchResults []struct {
		Word  string `json:"word"`
		Count int    `json:"count"`
	} `json:"searchResults"`
}

// extractWords drops the leading entry, which echoes the query.
func extractWords(resp searchResponse, limit int) []string {
	if len(resp.SearchResults) <= 1 {
		return nil
	}
	words := make([]string, 0, limit)
	for _, result := range resp.SearchResults[1:] {
		word := strings.TrimSpace(result.Word)
		if word == "" {
			continue
		}
		words = append(words, word)
		if len(words) == limit {
			break
		}
	}
	return words
}

func buildSearchURL(cfg Config, prefix string, limit int) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	searchURL, err := url.Parse(base + "/words.json/search/" + url.PathEscape(prefix+"*"))
	if err != nil {
		return "", fmt.Errorf("invalid Wordnik API base URL: %w", err)
	}
	query := searchURL.Query()
	query.Set("minCorpusCount", strconv.Itoa(cfg.MinCorpusCount))
	query.Set("caseSensitive", "false")
	query.Set("limit", strconv.Itoa(limit+1))
	query.Set("api_key", cfg.APIKey)
	searchURL.RawQuery = query.Encode()
	return searchURL.String(), nil
}
