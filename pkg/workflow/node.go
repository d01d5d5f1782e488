package workflow

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/papercomputeco/ragchat/pkg/conversation"
	"github.com/papercomputeco/ragchat/pkg/generator"
	"github.com/papercomputeco/ragchat/pkg/llm"
	"github.com/papercomputeco/ragchat/pkg/retriever"
	"github.com/papercomputeco/ragchat/pkg/websearch"
)

// NodeKind identifies a node of the workflow graph. The set is closed.
type NodeKind string

const (
	KindRetrieveDocument NodeKind = "retrieve_document"
	KindSearchWeb        NodeKind = "search_web"
	KindGenerate         NodeKind = "generate"
	KindFallback         NodeKind = "fallback"

	// KindEnd marks a completed turn. It matches checkpoint.End.
	KindEnd NodeKind = "__end__"
)

const (
	RAGNoticePrefix = "RAG Context: "
	WebNoticePrefix = "Web Context: "

	HighlightInstruction = "Highlight any information taken from RAG or Web contexts using **...** in your response."

	FallbackMessage = "I'm unable to find relevant information for your query right now. However, you can try rephrasing your question or providing more details, and I’ll do my best to assist you!"
)

// Update is the partial state produced by one node.
type Update struct {
	Messages   []llm.Message
	RAGContext *string
	WebContext *string

	// ClearContexts drops both contexts after the messages are applied.
	ClearContexts bool

	Usage *llm.Usage
}

func (u Update) apply(s *conversation.State) {
	s.Append(u.Messages...)
	if u.RAGContext != nil {
		s.RAGContext = *u.RAGContext
	}
	if u.WebContext != nil {
		s.WebContext = *u.WebContext
	}
	if u.ClearContexts {
		s.ClearContexts()
	}
}

// Node is one unit of work. Run receives a private copy of the state and
// returns the fields it changes.
type Node interface {
	Kind() NodeKind
	Run(ctx context.Context, state conversation.State) (Update, error)
}

type retrieveNode struct {
	retriever retriever.DocumentRetriever
	k         int
	logger    *slog.Logger
}

func (n *retrieveNode) Kind() NodeKind { return KindRetrieveDocument }

func (n *retrieveNode) Run(ctx context.Context, state conversation.State) (Update, error) {
	if state.FilePath == "" {
		return Update{}, retriever.ErrEmptyScope
	}

	query := state.Query()
	n.logger.Info("retrieving document context", "file", state.FilePath, "k", n.k)

	chunks, err := n.retriever.Search(ctx, query, state.FilePath, n.k)
	if err != nil {
		if errors.Is(err, retriever.ErrEmptyScope) {
			return Update{}, err
		}
		return Update{}, &CapabilityError{Source: SourceDocumentRetriever, Node: KindRetrieveDocument, Err: err}
	}

	text := retriever.JoinContent(chunks)
	n.logger.Debug("retrieved document context", "chunks", len(chunks), "chars", len(text))
	return Update{RAGContext: &text}, nil
}

type searchNode struct {
	searcher websearch.Searcher
	logger   *slog.Logger
}

func (n *searchNode) Kind() NodeKind { return KindSearchWeb }

func (n *searchNode) Run(ctx context.Context, state conversation.State) (Update, error) {
	query := state.Query()
	n.logger.Info("searching the web", "query", query)

	text, err := n.searcher.Search(ctx, query)
	if err != nil {
		return Update{}, &CapabilityError{Source: SourceWebSearcher, Node: KindSearchWeb, Err: err}
	}

	n.logger.Debug("web search context", "chars", len(text))
	return Update{WebContext: &text}, nil
}

type generateNode struct {
	generator generator.Generator
	logger    *slog.Logger
}

func (n *generateNode) Kind() NodeKind { return KindGenerate }

// Run appends the context notices, calls the model with the full history and
// appends its reply. Contexts are consumed.
func (n *generateNode) Run(ctx context.Context, state conversation.State) (Update, error) {
	notices := Notices(state.RAGContext, state.WebContext)
	history := slices.Concat(state.Messages, notices)

	resp, err := n.generator.Generate(ctx, history)
	if err != nil {
		return Update{}, &CapabilityError{Source: SourceGenerator, Node: KindGenerate, Err: err}
	}

	reply := resp.Message.Clone()
	reply.Role = llm.RoleAssistant

	if resp.Usage != nil {
		n.logger.Info("token usage",
			"model", resp.Model,
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
			"total_tokens", resp.Usage.TotalTokens,
		)
	}

	return Update{
		Messages:      append(notices, reply),
		ClearContexts: true,
		Usage:         resp.Usage,
	}, nil
}

// Notices returns the system messages announcing the non-empty contexts,
// followed by the highlight instruction when there is at least one.
func Notices(ragContext, webContext string) []llm.Message {
	var out []llm.Message
	if ragContext != "" {
		out = append(out, llm.NewTextMessage(llm.RoleSystem, RAGNoticePrefix+ragContext))
	}
	if webContext != "" {
		out = append(out, llm.NewTextMessage(llm.RoleSystem, WebNoticePrefix+webContext))
	}
	if len(out) > 0 {
		out = append(out, llm.NewTextMessage(llm.RoleSystem, HighlightInstruction))
	}
	return out
}

type fallbackNode struct {
	logger *slog.Logger
}

func (n *fallbackNode) Kind() NodeKind { return KindFallback }

func (n *fallbackNode) Run(_ context.Context, _ conversation.State) (Update, error) {
	n.logger.Info("no relevant context found, answering with fallback")
	return Update{
		Messages:      []llm.Message{llm.NewTextMessage(llm.RoleAssistant, FallbackMessage)},
		ClearContexts: true,
	}, nil
}
