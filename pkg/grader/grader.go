// Package grader decides whether a retrieved context is relevant to a query.
package grader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/ragchat/pkg/generator"
	"github.com/papercomputeco/ragchat/pkg/llm"
)

// ErrGradingAmbiguous is returned by ParseVerdict when a reply is neither a
// yes nor a no.
var ErrGradingAmbiguous = errors.New("grading reply is ambiguous")

// Grader returns true when ctxText is relevant to query.
type Grader interface {
	Grade(ctx context.Context, query, ctxText string) (bool, error)
}

const promptTemplate = `You are a grader assessing relevance of a retrieved document to a user query.
Here is the retrieved document:

%s

Here is the user query: %s
If the document contains keyword(s) or semantic meaning related to the user query, grade it as relevant.
Give a binary score 'yes' or 'no' score to indicate whether the document is relevant to the query.
Answer with a single word: yes or no.`

// Prompt renders the grading prompt for query and ctxText.
func Prompt(query, ctxText string) string {
	return fmt.Sprintf(promptTemplate, ctxText, query)
}

// LLMGrader grades with a language model.
type LLMGrader struct {
	generator generator.Generator
	logger    *slog.Logger
}

func NewLLMGrader(g generator.Generator, logger *slog.Logger) *LLMGrader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LLMGrader{generator: g, logger: logger}
}

// Grade asks the model for a verdict. An empty context is never relevant and
// is graded without a model call. Ambiguous replies are graded false.
func (g *LLMGrader) Grade(ctx context.Context, query, ctxText string) (bool, error) {
	if strings.TrimSpace(ctxText) == "" {
		return false, nil
	}

	resp, err := g.generator.Generate(ctx, []llm.Message{
		llm.NewTextMessage(llm.RoleUser, Prompt(query, ctxText)),
	})
	if err != nil {
		return false, err
	}

	reply := resp.Message.GetText()
	relevant, err := ParseVerdict(reply)
	if err != nil {
		g.logger.Warn("ambiguous relevance verdict, grading as not relevant", "reply", reply)
		return false, nil
	}

	if relevant {
		g.logger.Info("decision: context relevant")
	} else {
		g.logger.Info("decision: context not relevant")
	}
	return relevant, nil
}

// ParseVerdict accepts a bare yes/no token, ignoring case, whitespace and
// surrounding punctuation, or a JSON object {"binary_score": "yes"|"no"}.
func ParseVerdict(reply string) (bool, error) {
	s := strings.TrimSpace(reply)

	if strings.HasPrefix(s, "{") {
		var grade struct {
			BinaryScore string `json:"binary_score"`
		}
		if err := json.Unmarshal([]byte(s), &grade); err != nil {
			return false, fmt.Errorf("%w: %q", ErrGradingAmbiguous, reply)
		}
		s = grade.BinaryScore
	}

	token := strings.ToLower(strings.Trim(s, " \t\r\n.,!?;:'\"`*"))
	switch token {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrGradingAmbiguous, reply)
	}
}

var _ Grader = (*LLMGrader)(nil)
