package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neomind/edge/internal/llm"
	"github.com/neomind/edge/internal/neoerr"
	"github.com/neomind/edge/internal/store"
	"github.com/neomind/edge/internal/tools"
)

const (
	bucketSessions = "session_meta"
	bucketMessages = "session_messages"
	bucketPending  = "session_pending"
)

// MemoryConsolidator folds one completed exchange into mid-term memory.
// Consolidation runs as a bounded background task and its failure never
// propagates back to the user-facing exchange.
type MemoryConsolidator interface {
	Consolidate(ctx context.Context, sessionID string, exchange []Message) error
}

// NopConsolidator is the default when no mid-term memory backend is
// configured; it discards the exchange.
type NopConsolidator struct{}

func (NopConsolidator) Consolidate(ctx context.Context, sessionID string, exchange []Message) error {
	return nil
}

// Manager owns every session's persisted state and drives the
// message-processing flow against a registered LlmRuntime.
type Manager struct {
	sessions *store.Table[Meta]
	messages *store.Table[Message]
	pending  *store.Table[PendingStreamState]

	llmMgr       *llm.Manager
	toolRegistry *tools.Registry
	consolidator MemoryConsolidator
	log          *zap.SugaredLogger
}

func NewManager(s *store.Store, llmMgr *llm.Manager, toolRegistry *tools.Registry, consolidator MemoryConsolidator, log *zap.SugaredLogger) (*Manager, error) {
	sessions, err := store.NewTable[Meta](s, bucketSessions)
	if err != nil {
		return nil, err
	}
	messages, err := store.NewTable[Message](s, bucketMessages)
	if err != nil {
		return nil, err
	}
	pending, err := store.NewTable[PendingStreamState](s, bucketPending)
	if err != nil {
		return nil, err
	}
	if consolidator == nil {
		consolidator = NopConsolidator{}
	}
	return &Manager{
		sessions:     sessions,
		messages:     messages,
		pending:      pending,
		llmMgr:       llmMgr,
		toolRegistry: toolRegistry,
		consolidator: consolidator,
		log:          log,
	}, nil
}

func messageKey(sessionID string, index int) string {
	return fmt.Sprintf("%s\x1f%010d", sessionID, index)
}

func messagePrefix(sessionID string) string {
	return sessionID + "\x1f"
}

// CreateSession admits a new session and persists its metadata.
func (m *Manager) CreateSession(title, backend, model string) (*Meta, error) {
	now := time.Now()
	meta := Meta{ID: newSessionID(), Title: title, Backend: backend, Model: model, CreatedAt: now, UpdatedAt: now}
	if err := m.sessions.Put(meta.ID, meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func newSessionID() string {
	return fmt.Sprintf("sess-%d", time.Now().UnixNano())
}

func (m *Manager) GetSession(id string) (*Meta, error) {
	meta, found, err := m.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, neoerr.NotFoundf("session %q not found", id)
	}
	return &meta, nil
}

func (m *Manager) ListSessions() ([]Meta, error) {
	return m.sessions.List()
}

func (m *Manager) SetTitle(id, title string) error {
	meta, err := m.GetSession(id)
	if err != nil {
		return err
	}
	meta.Title = title
	meta.UpdatedAt = time.Now()
	return m.sessions.Put(meta.ID, *meta)
}

// nextIndex finds the next message index for a session by range-scanning
// its existing keys; an absent history starts at 0.
func (m *Manager) nextIndex(sessionID string) (int, error) {
	existing, err := m.messages.ScanPrefix(messagePrefix(sessionID))
	if err != nil {
		return 0, err
	}
	if len(existing) == 0 {
		return 0, nil
	}
	max := existing[0].Index
	for _, msg := range existing[1:] {
		if msg.Index > max {
			max = msg.Index
		}
	}
	return max + 1, nil
}

// AppendMessage persists msg at the next free index for its session.
func (m *Manager) AppendMessage(sessionID string, msg Message) (Message, error) {
	idx, err := m.nextIndex(sessionID)
	if err != nil {
		return Message{}, err
	}
	msg.SessionID = sessionID
	msg.Index = idx
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	if err := m.messages.Put(messageKey(sessionID, idx), msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// History returns every persisted message for a session in index order.
func (m *Manager) History(sessionID string) ([]Message, error) {
	msgs, err := m.messages.ScanPrefix(messagePrefix(sessionID))
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (m *Manager) GetPending(sessionID string) (*PendingStreamState, bool, error) {
	p, found, err := m.pending.Get(sessionID)
	if err != nil || !found {
		return nil, found, err
	}
	return &p, true, nil
}

// putPending persists p, stamping UpdatedAt so SweepStalePending measures
// time since the last delta rather than since the exchange started.
func (m *Manager) putPending(p PendingStreamState) error {
	p.UpdatedAt = time.Now()
	return m.pending.Put(p.SessionID, p)
}

func (m *Manager) ClearPending(sessionID string) error {
	return m.pending.Delete(sessionID)
}

// SweepStalePending removes any PendingStreamState that hasn't seen a
// delta in over the stale threshold, returning the session ids it reaped.
func (m *Manager) SweepStalePending(now time.Time) ([]string, error) {
	all, err := m.pending.List()
	if err != nil {
		return nil, err
	}
	var reaped []string
	for _, p := range all {
		if p.Stale(now) {
			if err := m.pending.Delete(p.SessionID); err != nil {
				return reaped, err
			}
			reaped = append(reaped, p.SessionID)
		}
	}
	return reaped, nil
}

// IsControlMessage reports whether client text is a "/"-prefixed control
// message, which is never forwarded to the LLM.
func IsControlMessage(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

func toLLMMessages(history []Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, h := range history {
		out = append(out, llm.Message{Role: h.Role, Content: h.Content, Images: h.Images})
	}
	return out
}

func toLLMTools(defs []tools.ToolDefLike) []llm.ToolDef {
	out := make([]llm.ToolDef, 0, len(defs))
	for _, d := range defs {
		out = append(out, llm.ToolDef{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}
	return out
}

// ProcessMessage runs the full streaming exchange: persist the user
// message, dispatch to the session's backend, track a PendingStreamState
// across the event stream, execute any tool calls, and on completion
// schedule bounded background memory consolidation. emit is called for
// every ClientEvent that should reach the transport.
func (m *Manager) ProcessMessage(ctx context.Context, sessionID string, userMessage Message, emit func(ClientEvent)) error {
	if IsControlMessage(userMessage.Content) {
		return neoerr.Validation("control messages are not forwarded to the LLM")
	}
	meta, err := m.GetSession(sessionID)
	if err != nil {
		return err
	}

	if _, err := m.AppendMessage(sessionID, userMessage); err != nil {
		return err
	}

	runtime, err := m.llmMgr.Get(meta.Backend)
	if err != nil {
		return err
	}

	history, err := m.History(sessionID)
	if err != nil {
		return err
	}

	req := llm.GenerateRequest{
		Model:    meta.Model,
		Messages: toLLMMessages(history),
		Tools:    toLLMTools(tools.Defs()),
	}

	pending := PendingStreamState{SessionID: sessionID, Stage: StageWaiting, StartedAt: time.Now()}
	if err := m.putPending(pending); err != nil {
		return err
	}

	streamCtx, cancel := context.WithTimeout(ctx, streamHardTimeout)
	defer cancel()

	events, err := runtime.GenerateStream(streamCtx, req)
	if err != nil {
		_ = m.ClearPending(sessionID)
		emit(ClientEvent{Type: ClientEventError, SessionID: sessionID, Message: err.Error()})
		emit(ClientEvent{Type: ClientEventEnd, SessionID: sessionID})
		return err
	}

	pending.Stage = StageStreaming
	var pendingToolCalls []llm.ToolCall

	for {
		select {
		case <-streamCtx.Done():
			_ = m.ClearPending(sessionID)
			emit(ClientEvent{Type: ClientEventError, SessionID: sessionID, Message: "stream timed out"})
			emit(ClientEvent{Type: ClientEventEnd, SessionID: sessionID})
			return streamCtx.Err()

		case ev, ok := <-events:
			if !ok {
				_ = m.ClearPending(sessionID)
				emit(ClientEvent{Type: ClientEventError, SessionID: sessionID, Message: "stream closed unexpectedly"})
				emit(ClientEvent{Type: ClientEventEnd, SessionID: sessionID})
				return neoerr.Communication("session stream closed without end event", nil)
			}

			switch ev.Type {
			case llm.EventThinking:
				pending.Thinking += ev.Delta
				_ = m.putPending(pending)
				emit(ClientEvent{Type: ClientEventThinking, SessionID: sessionID, Thinking: ev.Delta})

			case llm.EventContent:
				pending.Content += ev.Delta
				_ = m.putPending(pending)
				emit(ClientEvent{Type: ClientEventContent, SessionID: sessionID, Delta: ev.Delta})

			case llm.EventToolCallStart:
				emit(ClientEvent{Type: ClientEventToolCallStart, SessionID: sessionID, ToolCall: toSessionToolCall(ev.ToolCall, nil, "")})

			case llm.EventToolCallEnd:
				if ev.ToolCall != nil {
					pendingToolCalls = append(pendingToolCalls, *ev.ToolCall)
					result, toolErr := m.executeToolCall(*ev.ToolCall)
					errMsg := ""
					if toolErr != nil {
						errMsg = toolErr.Error()
					}
					tc := toSessionToolCall(ev.ToolCall, result, errMsg)
					emit(ClientEvent{Type: ClientEventToolCallEnd, SessionID: sessionID, ToolCall: tc})
					if _, err := m.AppendMessage(sessionID, Message{Role: "tool", ToolName: ev.ToolCall.Name, ToolCalls: []ToolCall{*tc}}); err != nil {
						m.logWarn("persist tool result", err)
					}
				}

			case llm.EventError:
				_ = m.ClearPending(sessionID)
				emit(ClientEvent{Type: ClientEventError, SessionID: sessionID, Message: ev.Message})

			case llm.EventEnd:
				_ = m.ClearPending(sessionID)
				if pending.Content != "" {
					if _, err := m.AppendMessage(sessionID, Message{Role: "assistant", Content: pending.Content}); err != nil {
						m.logWarn("persist assistant message", err)
					}
				}
				emit(ClientEvent{Type: ClientEventEnd, SessionID: sessionID})
				m.scheduleConsolidation(sessionID, userMessage, pending)
				return nil

			default:
				// Intent/Plan/Progress/Heartbeat/Warning pass through
				// untouched; they don't accumulate pending state.
				emit(ClientEvent{Type: string(ev.Type), SessionID: sessionID, Delta: ev.Delta, Message: ev.Message})
			}
		}
	}
}

func toSessionToolCall(call *llm.ToolCall, result any, errMsg string) *ToolCall {
	if call == nil {
		return nil
	}
	return &ToolCall{ID: call.ID, Name: call.Name, Arguments: call.Arguments, Result: result, Error: errMsg}
}

func (m *Manager) executeToolCall(call llm.ToolCall) (any, error) {
	if m.toolRegistry == nil {
		return nil, neoerr.Configuration("no tool registry configured for this session")
	}
	return m.toolRegistry.Execute(call.Name, call.Arguments)
}

// scheduleConsolidation runs memory consolidation in the background under
// a 5s outer timeout wrapping a 2s inner timeout for the actual call, so
// a hung consolidator can never block or leak past the outer bound.
func (m *Manager) scheduleConsolidation(sessionID string, userMessage Message, pending PendingStreamState) {
	exchange := []Message{userMessage, {Role: "assistant", Content: pending.Content}}
	go func() {
		outer, cancelOuter := context.WithTimeout(context.Background(), consolidationOuterTimeout)
		defer cancelOuter()
		inner, cancelInner := context.WithTimeout(outer, consolidationInnerTimeout)
		defer cancelInner()
		if err := m.consolidator.Consolidate(inner, sessionID, exchange); err != nil {
			m.logWarn("memory consolidation", err)
		}
	}()
}

func (m *Manager) logWarn(op string, err error) {
	if m.log != nil {
		m.log.Warnw(op+" failed", "error", err)
	}
}
