// Package workflow runs the retrieval-augmented chat graph: it routes a turn
// through document retrieval, web search, generation or fallback and
// checkpoints the state after every step so interrupted turns can resume.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/ragchat/pkg/checkpoint"
	"github.com/papercomputeco/ragchat/pkg/conversation"
	"github.com/papercomputeco/ragchat/pkg/eventstream"
	"github.com/papercomputeco/ragchat/pkg/eventstream/nop"
	"github.com/papercomputeco/ragchat/pkg/generator"
	"github.com/papercomputeco/ragchat/pkg/grader"
	"github.com/papercomputeco/ragchat/pkg/llm"
	"github.com/papercomputeco/ragchat/pkg/retriever"
	"github.com/papercomputeco/ragchat/pkg/websearch"
)

// DefaultK is the number of chunks retrieved per turn when unset.
const DefaultK = 4

const publishTimeout = 5 * time.Second

// Config wires the engine's ports. Store, Retriever, Searcher and Generator
// are required; Grader is required by the grading policy.
type Config struct {
	Store     checkpoint.Store
	Retriever retriever.DocumentRetriever
	Searcher  websearch.Searcher
	Generator generator.Generator
	Grader    grader.Grader

	// Publisher receives an event after every completed turn. Defaults to
	// the no-op publisher.
	Publisher eventstream.Publisher

	Policy Policy

	// K is the number of chunks retrieved per turn. Defaults to DefaultK.
	K int

	// Metrics defaults to an unregistered set.
	Metrics *Metrics

	Logger *slog.Logger
}

// Result is the outcome of one completed turn.
type Result struct {
	ThreadID string

	// Message is the final assistant message of the turn.
	Message llm.Message

	// Usage is nil when no model call produced the answer.
	Usage *llm.Usage

	// Path lists the executed nodes in order. Fan-out nodes are listed
	// retrieval first.
	Path []NodeKind

	Checkpoint *checkpoint.Checkpoint
}

// Engine executes turns. It is safe for concurrent use; turns on one thread
// are serialized and turns on distinct threads run in parallel.
type Engine struct {
	store     checkpoint.Store
	grader    grader.Grader
	publisher eventstream.Publisher
	policy    Policy
	metrics   *Metrics
	logger    *slog.Logger
	locks     *threadLocks

	nodes map[NodeKind]Node
}

// New validates cfg and builds the node handlers once.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if cfg.Retriever == nil {
		return nil, errors.New("document retriever is required")
	}
	if cfg.Searcher == nil {
		return nil, errors.New("web searcher is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("generator is required")
	}

	policy, err := ParsePolicy(string(cfg.Policy))
	if err != nil {
		return nil, err
	}
	if policy == PolicyGrading && cfg.Grader == nil {
		return nil, errors.New("grader is required by the grading policy")
	}

	if cfg.K <= 0 {
		cfg.K = DefaultK
	}
	if cfg.Publisher == nil {
		cfg.Publisher = nop.NewPublisher()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	logger := cfg.Logger
	nodes := make(map[NodeKind]Node)
	for _, n := range []Node{
		&retrieveNode{retriever: cfg.Retriever, k: cfg.K, logger: logger},
		&searchNode{searcher: cfg.Searcher, logger: logger},
		&generateNode{generator: cfg.Generator, logger: logger},
		&fallbackNode{logger: logger},
	} {
		nodes[n.Kind()] = n
	}

	return &Engine{
		store:     cfg.Store,
		grader:    cfg.Grader,
		publisher: cfg.Publisher,
		policy:    policy,
		metrics:   cfg.Metrics,
		logger:    logger,
		locks:     newThreadLocks(),
		nodes:     nodes,
	}, nil
}

// Policy returns the routing policy in use.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Execute runs one turn on threadID. An empty threadID starts a new thread
// with a generated ID. The messages of initial are appended to the thread's
// history and its scope and web search flag apply to this turn.
//
// Nothing is written until the first step succeeds, so a turn that fails in
// its first step leaves the thread's latest checkpoint untouched. If the
// thread has an interrupted turn and initial repeats its query, scope and
// flag, that turn is resumed. Any other query supersedes it and starts from
// the last completed turn.
func (e *Engine) Execute(ctx context.Context, threadID string, initial conversation.State) (*Result, error) {
	if !initial.EndsWithQuery() {
		return nil, ErrEmptyQuery
	}
	if threadID == "" {
		threadID = uuid.NewString()
	}
	if e.policy == PolicyGrading && initial.FilePath == "" {
		e.metrics.Turns.WithLabelValues(string(e.policy), OutcomeError).Inc()
		return nil, &ScopeError{ThreadID: threadID}
	}

	unlock, err := e.locks.lock(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	latest, err := e.load(ctx, threadID)
	if err != nil {
		return nil, err
	}

	base := latest
	if latest != nil && !latest.Completed() {
		if sameTurn(&latest.State, &initial) {
			e.logger.Info("resuming interrupted turn", "thread_id", threadID, "next", latest.Next)
			return e.run(ctx, threadID, latest.State.Clone(), NodeKind(latest.Next))
		}

		e.logger.Info("superseding interrupted turn", "thread_id", threadID, "next", latest.Next)
		if base, err = e.lastCompleted(ctx, threadID); err != nil {
			return nil, err
		}
	}

	var state conversation.State
	if base != nil {
		state = base.State.Clone()
	}
	incoming := initial.Clone()
	state.Append(incoming.Messages...)
	state.FilePath = incoming.FilePath
	state.EnableWebSearch = incoming.EnableWebSearch
	state.ClearContexts()

	e.logger.Info("starting turn",
		"thread_id", threadID,
		"policy", e.policy,
		"file", state.FilePath,
		"web_search", state.EnableWebSearch,
	)
	return e.run(ctx, threadID, state, e.policy.entry(&state))
}

// Resume continues the interrupted turn of threadID. A completed thread
// returns its last answer without running any node.
func (e *Engine) Resume(ctx context.Context, threadID string) (*Result, error) {
	unlock, err := e.locks.lock(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	latest, err := e.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, checkpoint.NotFoundError{ThreadID: threadID}
	}
	if latest.Completed() {
		msg, _ := latest.State.LastMessage()
		return &Result{ThreadID: threadID, Message: msg, Checkpoint: latest}, nil
	}

	return e.run(ctx, threadID, latest.State.Clone(), NodeKind(latest.Next))
}

// RecoverAll resumes every thread whose latest checkpoint is not at the end.
// It returns the number of threads completed and the joined errors of the
// ones that failed.
func (e *Engine) RecoverAll(ctx context.Context) (int, error) {
	threads, err := e.store.ListThreads(ctx)
	if err != nil {
		return 0, &CheckpointError{Op: "list", Err: err}
	}

	var (
		recovered int
		errs      []error
	)
	for _, id := range threads {
		cp, err := e.load(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if cp == nil || cp.Completed() {
			continue
		}

		if _, err := e.Resume(ctx, id); err != nil {
			e.logger.Warn("failed to recover thread", "thread_id", id, "error", err)
			errs = append(errs, fmt.Errorf("thread %s: %w", id, err))
			continue
		}
		recovered++
	}

	return recovered, errors.Join(errs...)
}

// run drives the graph from next until the end marker, appending a checkpoint
// after every successful step. A failed step writes nothing.
func (e *Engine) run(ctx context.Context, threadID string, state conversation.State, next NodeKind) (*Result, error) {
	start := time.Now()

	var cp *checkpoint.Checkpoint
	result := &Result{ThreadID: threadID}
	outcome := OutcomeGenerated

	for next != KindEnd {
		out, err := e.step(ctx, threadID, next, state)
		if err != nil {
			e.fail(err, threadID)
			return nil, err
		}

		result.Path = append(result.Path, out.path...)
		if out.usage != nil {
			result.Usage = out.usage
		}
		if next == KindFallback {
			outcome = OutcomeFallback
		}

		if err := ctx.Err(); err != nil {
			e.fail(err, threadID)
			return nil, err
		}

		cp, err = e.append(ctx, threadID, out.state, out.next)
		if err != nil {
			e.fail(err, threadID)
			return nil, err
		}

		state = out.state
		next = out.next
	}

	result.Message, _ = state.LastMessage()
	result.Checkpoint = cp

	e.metrics.Turns.WithLabelValues(string(e.policy), outcome).Inc()
	e.logger.Info("turn completed",
		"thread_id", threadID,
		"path", result.Path,
		"seq", cp.Seq,
		"duration", time.Since(start),
	)

	e.publish(ctx, result, &state, start)
	return result, nil
}

type stepOutput struct {
	state conversation.State
	next  NodeKind
	path  []NodeKind
	usage *llm.Usage
}

// step executes the node at next and decides the following one.
func (e *Engine) step(ctx context.Context, threadID string, next NodeKind, state conversation.State) (*stepOutput, error) {
	switch next {
	case KindRetrieveDocument, KindSearchWeb:
		if e.policy == PolicyFanout {
			return e.fanout(ctx, threadID, state)
		}
		return e.graded(ctx, threadID, next, state)

	case KindGenerate, KindFallback:
		update, err := e.runNode(ctx, threadID, next, state.Clone())
		if err != nil {
			return nil, err
		}
		update.apply(&state)
		return &stepOutput{state: state, next: KindEnd, path: []NodeKind{next}, usage: update.Usage}, nil

	default:
		return nil, fmt.Errorf("unknown workflow node %q", next)
	}
}

// graded runs a context node and grades its output. A relevant context goes
// to Generate; otherwise retrieval falls through to web search and web search
// falls through to Fallback.
func (e *Engine) graded(ctx context.Context, threadID string, kind NodeKind, state conversation.State) (*stepOutput, error) {
	update, err := e.runNode(ctx, threadID, kind, state.Clone())
	if err != nil {
		return nil, err
	}
	update.apply(&state)

	text := state.RAGContext
	miss := KindSearchWeb
	if kind == KindSearchWeb {
		text = state.WebContext
		miss = KindFallback
	}

	relevant, err := e.grade(ctx, kind, state.Query(), text)
	if err != nil {
		return nil, err
	}

	next := miss
	if relevant {
		next = KindGenerate
	}
	e.logger.Debug("graded context", "node", kind, "relevant", relevant, "next", next)

	return &stepOutput{state: state, next: next, path: []NodeKind{kind}}, nil
}

func (e *Engine) grade(ctx context.Context, kind NodeKind, query, text string) (bool, error) {
	if text == "" {
		return false, nil
	}

	relevant, err := e.grader.Grade(ctx, query, text)
	if err != nil {
		return false, &CapabilityError{Source: SourceRelevanceGrader, Node: kind, Err: err}
	}
	return relevant, nil
}

// fanout runs the selected context nodes concurrently and applies their
// updates in a fixed order once all have finished.
func (e *Engine) fanout(ctx context.Context, threadID string, state conversation.State) (*stepOutput, error) {
	selected := fanoutSelection(&state)
	updates := make([]Update, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range selected {
		input := state.Clone()
		g.Go(func() error {
			u, err := e.runNode(gctx, threadID, kind, input)
			if err != nil {
				return err
			}
			updates[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, u := range updates {
		u.apply(&state)
	}
	return &stepOutput{state: state, next: KindGenerate, path: selected}, nil
}

// runNode runs one node. A missing document scope is reported as a
// ScopeError for threadID.
func (e *Engine) runNode(ctx context.Context, threadID string, kind NodeKind, state conversation.State) (Update, error) {
	start := time.Now()
	update, err := e.nodes[kind].Run(ctx, state)
	e.metrics.NodeDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if errors.Is(err, retriever.ErrEmptyScope) {
		return Update{}, &ScopeError{ThreadID: threadID}
	}
	return update, err
}

func (e *Engine) load(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	cp, err := e.store.Load(ctx, threadID)
	if err != nil {
		if checkpoint.IsNotFound(err) {
			return nil, nil
		}
		return nil, &CheckpointError{Op: "load", ThreadID: threadID, Err: err}
	}
	return cp, nil
}

// lastCompleted returns the newest checkpoint of threadID that ends a turn,
// or nil when no turn has completed yet.
func (e *Engine) lastCompleted(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	history, err := e.store.History(ctx, threadID)
	if err != nil {
		return nil, &CheckpointError{Op: "history", ThreadID: threadID, Err: err}
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Completed() {
			return history[i], nil
		}
	}
	return nil, nil
}

func (e *Engine) append(ctx context.Context, threadID string, state conversation.State, next NodeKind) (*checkpoint.Checkpoint, error) {
	cp, err := e.store.Append(ctx, threadID, state, string(next))
	if err != nil {
		return nil, &CheckpointError{Op: "append", ThreadID: threadID, Err: err}
	}
	e.logger.Debug("checkpoint written", "thread_id", threadID, "seq", cp.Seq, "next", next)
	return cp, nil
}

// fail records metrics for a turn that did not complete.
func (e *Engine) fail(err error, threadID string) {
	outcome := OutcomeError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		outcome = OutcomeCanceled
	}
	e.metrics.Turns.WithLabelValues(string(e.policy), outcome).Inc()

	var capErr *CapabilityError
	if errors.As(err, &capErr) {
		e.metrics.CapabilityErrors.WithLabelValues(capErr.Source).Inc()
	}
	e.logger.Error("turn failed", "thread_id", threadID, "outcome", outcome, "error", err)
}

func (e *Engine) publish(ctx context.Context, result *Result, state *conversation.State, start time.Time) {
	event := eventstream.NewTurnCompletedEvent(result.ThreadID)
	event.CheckpointID = result.Checkpoint.ID
	event.Seq = result.Checkpoint.Seq
	event.Policy = string(e.policy)
	for _, k := range result.Path {
		event.Path = append(event.Path, string(k))
	}
	event.Query = state.Query()
	event.FilePath = state.FilePath
	event.EnableWebSearch = state.EnableWebSearch
	event.Reply = result.Message
	event.Usage = result.Usage
	event.StartedAt = start.UTC()
	event.DurationMs = time.Since(start).Milliseconds()

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := e.publisher.PublishTurn(pubCtx, event); err != nil {
		e.logger.Warn("failed to publish turn event", "thread_id", result.ThreadID, "error", err)
	}
}

// sameTurn reports whether incoming repeats the pending turn held by pending.
func sameTurn(pending, incoming *conversation.State) bool {
	return pending.Query() == incoming.Query() &&
		pending.FilePath == incoming.FilePath &&
		pending.EnableWebSearch == incoming.EnableWebSearch
}
