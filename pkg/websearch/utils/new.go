// Package websearchutils builds a websearch.Searcher from configuration.
package websearchutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/ragchat/pkg/credentials"
	"github.com/papercomputeco/ragchat/pkg/websearch"
	"github.com/papercomputeco/ragchat/pkg/websearch/tavily"
)

type NewSearcherOpts struct {
	// ProviderType is "tavily" or "none".
	ProviderType string
	Target       string

	// APIKey overrides stored credentials and environment variables.
	APIKey      string
	Credentials *credentials.Manager

	MaxResults        uint
	SearchDepth       string
	IncludeAnswer     bool
	IncludeRawContent bool
	IncludeImages     bool

	Logger *slog.Logger
}

func NewSearcher(o *NewSearcherOpts) (websearch.Searcher, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	switch o.ProviderType {
	case "none", "":
		return websearch.Disabled{}, nil
	case credentials.ProviderTavily:
		key := credentials.Resolve(o.Credentials, o.ProviderType, o.APIKey)
		if key == "" {
			logger.Warn("no tavily API key found, web search disabled",
				"env", credentials.EnvVarForProvider(credentials.ProviderTavily))
			return websearch.Disabled{}, nil
		}
		return tavily.New(tavily.Config{
			BaseURL:           o.Target,
			APIKey:            key,
			MaxResults:        o.MaxResults,
			SearchDepth:       o.SearchDepth,
			IncludeAnswer:     o.IncludeAnswer,
			IncludeRawContent: o.IncludeRawContent,
			IncludeImages:     o.IncludeImages,
			Logger:            logger,
		})
	default:
		return nil, fmt.Errorf("unsupported web search provider: %s", o.ProviderType)
	}
}
