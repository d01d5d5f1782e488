// Package tavily implements websearch.Searcher over the Tavily search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/ragchat/pkg/websearch"
)

const (
	DefaultBaseURL     = "https://api.tavily.com"
	DefaultMaxResults  = 1
	DefaultSearchDepth = "basic"
)

// ErrSearch is wrapped by every Tavily failure.
var ErrSearch = errors.New("web search failed")

type Config struct {
	BaseURL           string
	APIKey            string
	MaxResults        uint
	SearchDepth       string
	IncludeAnswer     bool
	IncludeRawContent bool
	IncludeImages     bool
	Logger            *slog.Logger
}

type Searcher struct {
	config     Config
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(c Config) (*Searcher, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("tavily API key is required")
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.SearchDepth == "" {
		c.SearchDepth = DefaultSearchDepth
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return &Searcher{
		config:     c,
		baseURL:    strings.TrimRight(c.BaseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     c.Logger,
	}, nil
}

// Search returns the content of the first result.
func (s *Searcher) Search(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(searchRequest{
		Query:             query,
		MaxResults:        s.config.MaxResults,
		SearchDepth:       s.config.SearchDepth,
		IncludeAnswer:     s.config.IncludeAnswer,
		IncludeRawContent: s.config.IncludeRawContent,
		IncludeImages:     s.config.IncludeImages,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %w", ErrSearch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %w", ErrSearch, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: sending request: %w", ErrSearch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrSearch, resp.StatusCode, string(respBody))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", ErrSearch, err)
	}

	if len(out.Results) == 0 {
		s.logger.Debug("web search returned no results", "query", query)
		return "", nil
	}

	s.logger.Debug("web search result", "query", query, "url", out.Results[0].URL)
	return out.Results[0].Content, nil
}

var _ websearch.Searcher = (*Searcher)(nil)
