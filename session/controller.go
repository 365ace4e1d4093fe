// Package session implements the conversation session orchestrator: it
// sequences retrieval, context assembly, backend dispatch, and token
// accounting into one uniform streaming protocol, and shrinks the retrieved
// context mid-conversation when the token budget runs short.
//
//	ctrl, err := session.New(&cfg,
//		session.WithFactory(factory),
//		session.WithRetriever(store),
//	)
//	stream, err := ctrl.Start(ctx, "What is X?", retrieval.Filters{})
//	for ev, err := range stream { ... }
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/converse/backend"
	"github.com/tailored-agentic-units/converse/core/protocol"
	"github.com/tailored-agentic-units/converse/core/tokens"
	"github.com/tailored-agentic-units/converse/observability"
	"github.com/tailored-agentic-units/converse/retrieval"
)

type state int

const (
	stateIdle state = iota
	stateActive
	stateDestroyed
)

// DisplayPost is the display projection of one retrieved post: deduped per
// post, carrying its best chunk score.
type DisplayPost struct {
	Title string  `json:"title"`
	URL   string  `json:"url,omitempty"`
	Date  string  `json:"date,omitempty"`
	Type  string  `json:"type,omitempty"`
	Score float32 `json:"score"`
}

// SearchData is the retrieval outcome of the current epoch, carried on the
// search event and available through SearchData().
type SearchData struct {
	Posts        []retrieval.Post   `json:"posts"`
	Chunks       []retrieval.Chunk  `json:"chunks"`
	Metadata     retrieval.Metadata `json:"metadata"`
	DisplayPosts []DisplayPost      `json:"displayPosts"`
}

// Option configures a Controller after config-driven initialization.
type Option func(*Controller)

// WithRetriever sets the retrieval collaborator. Required before Start.
func WithRetriever(r retrieval.Retriever) Option {
	return func(c *Controller) { c.retriever = r }
}

// WithContextBuilder overrides the default context builder.
func WithContextBuilder(b retrieval.ContextBuilder) Option {
	return func(c *Controller) { c.builder = b }
}

// WithFactory sets the backend factory. Required.
func WithFactory(f *backend.Factory) Option {
	return func(c *Controller) { c.factory = f }
}

// WithObserver overrides the config-resolved diagnostics observer.
func WithObserver(o observability.Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithClock overrides the time source used for elapsed-time enrichment.
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) { c.clock = clock }
}

// Controller owns one conversation: its history, token ledger, context
// state, and the active backend handle. At most one turn may be in flight at
// a time; callers must serialize Start/Continue externally (single-writer
// discipline, no internal locking on the dispatch path).
type Controller struct {
	id        string
	cfg       Config
	caps      backend.Capabilities
	retriever retrieval.Retriever
	builder   retrieval.ContextBuilder
	factory   *backend.Factory
	observer  observability.Observer
	clock     func() time.Time

	state        state
	history      *history
	ledger       *TokenLedger
	contextState *ContextState
	handler      backend.Handler
	search       *SearchData
}

// New creates a Controller from configuration. The backend factory must be
// provided via WithFactory; capabilities for the configured (provider,
// model) pair are resolved once here and never change.
func New(cfg *Config, opts ...Option) (*Controller, error) {
	base := DefaultConfig()
	if cfg != nil {
		base.Merge(cfg)
	}

	c := &Controller{
		id:      uuid.Must(uuid.NewV7()).String(),
		cfg:     base,
		history: &history{},
		clock:   time.Now,
	}

	if base.Observer != "" {
		obs, err := observability.GetObserver(base.Observer)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		c.observer = obs
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.observer == nil {
		c.observer = observability.NoOpObserver{}
	}
	if c.builder == nil {
		c.builder = retrieval.NewBuilder(0)
	}
	if c.factory == nil {
		return nil, errors.New("backend factory is required")
	}

	caps, err := c.factory.Capabilities(base.Provider)
	if err != nil {
		return nil, err
	}
	c.caps = caps

	c.ledger = NewTokenLedger(base.TokenLimit, base.MinExchangeReserve)
	return c, nil
}

// ID returns the unique session identifier.
func (c *Controller) ID() string {
	return c.id
}

// Capabilities returns the resolved capability descriptor.
func (c *Controller) Capabilities() backend.Capabilities {
	return c.caps
}

// Model returns the configured (provider, model) pair.
func (c *Controller) Model() (provider, model string) {
	return c.cfg.Provider, c.cfg.Model
}

// TokenUsage returns the current ledger snapshot.
func (c *Controller) TokenUsage() TokenUsage {
	return c.ledger.Usage()
}

// History returns an ordered copy of the committed conversation turns.
func (c *Controller) History() []protocol.Message {
	return c.history.Messages()
}

// SearchData returns the current epoch's retrieval outcome, or nil when no
// epoch has run.
func (c *Controller) SearchData() *SearchData {
	if c.search == nil {
		return nil
	}
	copied := *c.search
	return &copied
}

// CanContinue reports whether another turn can happen on this controller.
func (c *Controller) CanContinue() bool {
	if c.state != stateActive || c.history.Len() == 0 {
		return false
	}
	return c.ledger.CanContinue(c.caps, c.history.Len())
}

// Start begins a new conversation epoch: it resets history, ledger, and
// context state, disposes any previous backend handle, runs retrieval and
// context assembly, and dispatches the first turn. The returned stream
// emits one search event, the turn's data/finishReason/usage events, then a
// terminal done event. Caller-misuse and collaborator failures are returned
// synchronously; no partial stream precedes them.
func (c *Controller) Start(ctx context.Context, query string, filters retrieval.Filters) (protocol.Stream, error) {
	if c.state == stateDestroyed {
		return nil, ErrDestroyed
	}
	if c.retriever == nil {
		return nil, ErrNoRetriever
	}

	// New epoch: dispose the previous handle and clear all session state.
	if c.handler != nil {
		if err := c.handler.Close(ctx); err != nil {
			c.emit(ctx, EventError, observability.LevelWarning, map[string]any{
				"error": fmt.Sprintf("close previous handle: %v", err),
			})
		}
		c.handler = nil
	}
	c.history.Clear()
	c.ledger.Reset()
	c.contextState = nil
	c.search = nil
	c.state = stateIdle

	retrievalStart := c.clock()
	result, err := c.retriever.Search(ctx, query, filters)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	retrievalElapsed := c.clock().Sub(retrievalStart)
	if result.Metadata.Elapsed == nil {
		result.Metadata.Elapsed = map[string]time.Duration{}
	}
	result.Metadata.Elapsed["retrieval"] = retrievalElapsed

	cs := &ContextState{RawChunks: result.Chunks, InitialQuery: query}
	if len(result.Chunks) > 0 {
		built, err := c.builder.Build(ctx, retrieval.BuildRequest{
			Chunks:       result.Chunks,
			Query:        query,
			Provider:     c.cfg.Provider,
			Model:        c.cfg.Model,
			ForMultiTurn: c.caps.SupportsMultiTurn,
			IsFirstTurn:  true,
		})
		if err != nil {
			return nil, fmt.Errorf("context build failed: %w", err)
		}
		cs.Text = built.Context
		cs.ChunkCount = built.ChunkCount
		cs.TokenBreakdown = built.TokenBreakdown
	}
	c.contextState = cs
	c.search = &SearchData{
		Posts:        result.Posts,
		Chunks:       result.Chunks,
		Metadata:     result.Metadata,
		DisplayPosts: displayProjection(result),
	}
	c.state = stateActive

	turn, err := c.prepareTurn(ctx, query)
	if err != nil {
		return nil, err
	}

	c.emit(ctx, EventSessionStart, observability.LevelInfo, map[string]any{
		"session_id": c.id,
		"provider":   c.cfg.Provider,
		"model":      c.cfg.Model,
		"chunks":     cs.ChunkCount,
	})

	searchData := *c.search
	return func(yield func(protocol.Event, error) bool) {
		if !yield(protocol.Event{Type: protocol.EventSearch, Message: &searchData}, nil) {
			return
		}
		if !c.runTurn(ctx, yield, turn, retrievalElapsed) {
			return
		}
		yield(protocol.Event{Type: protocol.EventDone}, nil)
	}, nil
}

// Continue dispatches a follow-up turn. Retrieval is not re-run; the
// current context state is reused. The token-limit policy is evaluated
// before dispatch: hard mode fails synchronously, soft mode logs a warning
// and proceeds.
func (c *Controller) Continue(ctx context.Context, query string) (protocol.Stream, error) {
	if c.state == stateDestroyed {
		return nil, ErrDestroyed
	}
	if c.state != stateActive || c.history.Len() == 0 {
		return nil, ErrNoActiveConversation
	}
	if !c.caps.SupportsMultiTurn {
		return nil, backend.ErrUnsupportedFollowUp
	}

	if !c.ledger.CanContinue(c.caps, c.history.Len()) {
		usage := c.ledger.Usage()
		if c.cfg.HardTokenLimit {
			return nil, fmt.Errorf("%w: %d available, %d reserved for an exchange",
				ErrTokenLimitExceeded, usage.Available, c.cfg.MinExchangeReserve)
		}
		c.emit(ctx, EventTokenWarning, observability.LevelWarning, map[string]any{
			"used":      usage.Used,
			"available": usage.Available,
			"limit":     usage.Limit,
		})
	}

	turn, err := c.prepareTurn(ctx, query)
	if err != nil {
		return nil, err
	}

	return func(yield func(protocol.Event, error) bool) {
		if !c.runTurn(ctx, yield, turn, 0) {
			return
		}
		yield(protocol.Event{Type: protocol.EventDone}, nil)
	}, nil
}

// ReduceContext applies the halving back-off to the current context state.
// Returns whether the reduction succeeded; failure is non-fatal and leaves
// state untouched.
func (c *Controller) ReduceContext(ctx context.Context) (bool, error) {
	if c.state == stateDestroyed {
		return false, ErrDestroyed
	}
	if c.contextState == nil {
		return false, nil
	}

	before := c.contextState.ChunkCount
	ok := c.contextState.reduce(ctx, c.builder, c.cfg.Provider, c.cfg.Model, c.cfg.MinContextChunks)
	if ok {
		c.emit(ctx, EventContextReduced, observability.LevelInfo, map[string]any{
			"chunks_before": before,
			"chunks_after":  c.contextState.ChunkCount,
		})
	} else {
		c.emit(ctx, EventContextReduceFailed, observability.LevelWarning, map[string]any{
			"chunks":     before,
			"min_chunks": c.cfg.MinContextChunks,
		})
	}
	return ok, nil
}

// Destroy releases the backend handle and clears all session state. The
// controller is terminal afterwards; all further calls fail. Destroy is
// idempotent.
func (c *Controller) Destroy(ctx context.Context) error {
	if c.state == stateDestroyed {
		return nil
	}
	c.state = stateDestroyed

	var err error
	if c.handler != nil {
		err = c.handler.Close(ctx)
		c.handler = nil
	}
	c.history.Clear()
	c.contextState = nil
	c.search = nil

	c.emit(ctx, EventSessionDestroy, observability.LevelInfo, map[string]any{
		"session_id": c.id,
	})
	return err
}

type preparedTurn struct {
	stream      protocol.Stream
	query       string
	prompt      string
	queryTokens int
}

// prepareTurn performs the synchronous part of a dispatch: the single-turn
// guard, lazy handle creation, message-list reconstruction, and the handler
// call. Any failure here precedes the first event of the stream.
func (c *Controller) prepareTurn(ctx context.Context, query string) (*preparedTurn, error) {
	if !c.caps.SupportsMultiTurn && c.history.Len() > 0 {
		return nil, backend.ErrUnsupportedFollowUp
	}

	if c.handler == nil {
		h, err := c.factory.NewHandler(ctx, c.cfg.Provider, backend.HandlerConfig{
			Model:       c.cfg.Model,
			Temperature: c.cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		c.handler = h
	}

	contextText := ""
	if c.contextState != nil {
		contextText = c.contextState.Text
	}
	system := c.cfg.BasePrompt
	if contextText != "" {
		system += "\n\nSource material:\n\n" + contextText
	}

	messages := make([]protocol.Message, 0, c.history.Len()+2)
	messages = append(messages, protocol.NewMessage(protocol.RoleSystem, system))
	messages = append(messages, c.history.Messages()...)
	messages = append(messages, protocol.NewMessage(protocol.RoleUser, query))

	stream, err := c.handler.Send(ctx, backend.Input{
		Messages: messages,
		Latest:   query,
		System:   system,
		Context:  contextText,
	})
	if err != nil {
		return nil, err
	}

	return &preparedTurn{
		stream:      stream,
		query:       query,
		prompt:      renderPrompt(messages),
		queryTokens: tokens.EstimateMessage(query),
	}, nil
}

// runTurn drives one backend stream, re-tagging usage events with
// session-level bookkeeping. The ledger is updated and the user+assistant
// pair committed to history only after the stream completes without
// failure; an abandoned or failed stream leaves both untouched.
func (c *Controller) runTurn(ctx context.Context, yield func(protocol.Event, error) bool, turn *preparedTurn, retrievalElapsed time.Duration) bool {
	turnNumber := c.history.Len()/2 + 1
	c.emit(ctx, EventTurnStart, observability.LevelVerbose, map[string]any{
		"turn": turnNumber,
	})

	dispatchStart := c.clock()
	var firstToken, lastToken time.Time
	var usage *backend.Usage

	for ev, err := range turn.stream {
		if err != nil {
			c.emit(ctx, EventError, observability.LevelError, map[string]any{
				"turn":  turnNumber,
				"error": err.Error(),
			})
			yield(protocol.Event{}, err)
			return false
		}

		switch ev.Type {
		case protocol.EventData:
			now := c.clock()
			if firstToken.IsZero() {
				firstToken = now
			}
			lastToken = now
			if !yield(ev, nil) {
				return false
			}
		case protocol.EventUsage:
			reported, ok := ev.Message.(*backend.Usage)
			if !ok {
				yield(protocol.Event{}, fmt.Errorf("backend emitted malformed usage payload %T", ev.Message))
				return false
			}
			usage = reported
			enriched := c.enrichUsage(reported, turn, turnNumber, dispatchStart, firstToken, lastToken, retrievalElapsed)
			if !yield(protocol.Event{Type: protocol.EventUsage, Message: enriched}, nil) {
				return false
			}
		default:
			if !yield(ev, nil) {
				return false
			}
		}
	}

	if usage == nil {
		err := errors.New("backend stream ended without a usage report")
		c.emit(ctx, EventError, observability.LevelError, map[string]any{
			"turn":  turnNumber,
			"error": err.Error(),
		})
		yield(protocol.Event{}, err)
		return false
	}

	c.ledger.Record(usage.TotalInputTokens, usage.TotalOutputTokens)
	c.history.AppendPair(turn.query, usage.Text)

	c.emit(ctx, EventTurnComplete, observability.LevelInfo, map[string]any{
		"turn":          turnNumber,
		"output_tokens": usage.OutputTokens,
		"total_tokens":  usage.TotalTokens,
	})
	return true
}

func (c *Controller) enrichUsage(reported *backend.Usage, turn *preparedTurn, turnNumber int, dispatchStart, firstToken, lastToken time.Time, retrievalElapsed time.Duration) *protocol.Usage {
	preview := c.ledger.Preview(reported.TotalInputTokens, reported.TotalOutputTokens)

	u := &protocol.Usage{
		InputTokens:       reported.InputTokens,
		OutputTokens:      reported.OutputTokens,
		TotalInputTokens:  reported.TotalInputTokens,
		TotalOutputTokens: reported.TotalOutputTokens,
		TotalTokens:       reported.TotalTokens,
		Available:         preview.Available,
		Limit:             preview.Limit,
		TurnNumber:        turnNumber,
		QueryTokens:       turn.queryTokens,
		Prompt:            turn.prompt,
		RetrievalElapsed:  retrievalElapsed,
	}
	if c.contextState != nil {
		u.ContextTokens = c.contextState.TokenBreakdown.Context
		u.Context = c.contextState.Text
	}
	if !firstToken.IsZero() {
		u.TimeToFirstToken = firstToken.Sub(dispatchStart)
		u.TimeToLastToken = lastToken.Sub(dispatchStart)
	}
	return u
}

func (c *Controller) emit(ctx context.Context, eventType observability.EventType, level observability.Level, data map[string]any) {
	c.observer.OnEvent(ctx, observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: c.clock(),
		Source:    "session.Controller",
		Data:      data,
	})
}

// displayProjection dedupes chunks per post, keeping each post's best chunk
// score, ordered best first.
func displayProjection(result *retrieval.Result) []DisplayPost {
	best := make(map[string]float32, len(result.Posts))
	for _, chunk := range result.Chunks {
		if score, ok := best[chunk.PostID]; !ok || chunk.Score > score {
			best[chunk.PostID] = chunk.Score
		}
	}

	display := make([]DisplayPost, 0, len(result.Posts))
	for _, post := range result.Posts {
		display = append(display, DisplayPost{
			Title: post.Title,
			URL:   post.URL,
			Date:  post.Date,
			Type:  post.Type,
			Score: best[post.ID],
		})
	}

	sort.SliceStable(display, func(i, j int) bool {
		return display[i].Score > display[j].Score
	})
	return display
}

func renderPrompt(messages []protocol.Message) string {
	var sb strings.Builder
	for i, msg := range messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s]\n%s", msg.Role, msg.Content)
	}
	return sb.String()
}
