// Package generatorutils builds a generator.Generator from configuration.
package generatorutils

import (
	"fmt"

	"github.com/papercomputeco/ragchat/pkg/credentials"
	"github.com/papercomputeco/ragchat/pkg/generator"
	"github.com/papercomputeco/ragchat/pkg/generator/anthropic"
	"github.com/papercomputeco/ragchat/pkg/generator/ollama"
	"github.com/papercomputeco/ragchat/pkg/generator/openai"
)

type NewGeneratorOpts struct {
	ProviderType string
	Target       string
	Model        string
	Temperature  float64

	// APIKey overrides stored credentials and environment variables.
	APIKey string

	// Credentials is consulted for hosted providers when APIKey is empty.
	// May be nil.
	Credentials *credentials.Manager
}

func NewGenerator(o *NewGeneratorOpts) (generator.Generator, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL:     o.Target,
			Model:       o.Model,
			Temperature: o.Temperature,
		}), nil
	case credentials.ProviderOpenAI:
		return openai.New(openai.Config{
			BaseURL:     o.Target,
			APIKey:      credentials.Resolve(o.Credentials, o.ProviderType, o.APIKey),
			Model:       o.Model,
			Temperature: o.Temperature,
		})
	case credentials.ProviderAnthropic:
		return anthropic.New(anthropic.Config{
			BaseURL:     o.Target,
			APIKey:      credentials.Resolve(o.Credentials, o.ProviderType, o.APIKey),
			Model:       o.Model,
			Temperature: o.Temperature,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", o.ProviderType)
	}
}
