package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/neomind/edge/internal/llm"
	"github.com/neomind/edge/internal/store"
)

func newTestManager(t *testing.T, runtime llm.LlmRuntime) *Manager {
	t.Helper()
	t.Cleanup(store.CloseAll)
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "session.db"))
	if err != nil {
		t.Fatal(err)
	}
	llmMgr := llm.NewManager("fake")
	llmMgr.Register(runtime)

	mgr, err := NewManager(s, llmMgr, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return mgr
}

type fakeRuntime struct {
	events []llm.AgentEvent
}

func (f *fakeRuntime) Name() string                             { return "fake" }
func (f *fakeRuntime) Capabilities(model string) llm.Capabilities { return llm.Capabilities{Streaming: true} }
func (f *fakeRuntime) Metrics() llm.Metrics                       { return llm.Metrics{} }

func (f *fakeRuntime) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error) {
	return &llm.GenerateResult{Content: "hello"}, nil
}

func (f *fakeRuntime) GenerateStream(ctx context.Context, req llm.GenerateRequest) (<-chan llm.AgentEvent, error) {
	ch := make(chan llm.AgentEvent, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func TestAppendMessageAssignsSequentialIndexes(t *testing.T) {
	mgr := newTestManager(t, &fakeRuntime{})
	meta, err := mgr.CreateSession("test", "fake", "model-x")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := mgr.AppendMessage(meta.ID, Message{Role: "user", Content: "hi"}); err != nil {
			t.Fatal(err)
		}
	}

	history, err := mgr.History(meta.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	for i, m := range history {
		if m.Index != i {
			t.Fatalf("expected index %d, got %d", i, m.Index)
		}
	}
}

func TestProcessMessageHappyPath(t *testing.T) {
	runtime := &fakeRuntime{events: []llm.AgentEvent{
		{Type: llm.EventContent, Delta: "answer part 1"},
		{Type: llm.EventContent, Delta: " part 2"},
		{Type: llm.EventEnd},
	}}
	mgr := newTestManager(t, runtime)
	meta, err := mgr.CreateSession("test", "fake", "model-x")
	if err != nil {
		t.Fatal(err)
	}

	var seen []ClientEvent
	err = mgr.ProcessMessage(context.Background(), meta.ID, Message{Role: "user", Content: "hi"}, func(ev ClientEvent) {
		seen = append(seen, ev)
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, found, _ := mgr.GetPending(meta.ID); found {
		t.Fatal("pending state should be cleared after End")
	}

	history, err := mgr.History(meta.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("expected user+assistant messages, got %d", len(history))
	}
	if history[1].Content != "answer part 1 part 2" {
		t.Fatalf("unexpected assistant content %q", history[1].Content)
	}

	foundEnd := false
	for _, ev := range seen {
		if ev.Type == ClientEventEnd {
			foundEnd = true
		}
	}
	if !foundEnd {
		t.Fatal("expected an end event to be forwarded")
	}
}

func TestIsControlMessage(t *testing.T) {
	if !IsControlMessage("/clear") {
		t.Fatal("expected /clear to be a control message")
	}
	if IsControlMessage("hello") {
		t.Fatal("expected plain text to not be a control message")
	}
}

func TestSweepStalePendingReapsOldEntries(t *testing.T) {
	mgr := newTestManager(t, &fakeRuntime{})
	meta, _ := mgr.CreateSession("test", "fake", "model-x")

	staleAt := time.Now().Add(-15 * time.Minute)
	old := PendingStreamState{SessionID: meta.ID, Stage: StageStreaming, StartedAt: staleAt, UpdatedAt: staleAt}
	// Written directly to the table, bypassing putPending: putPending always
	// stamps UpdatedAt to now, which would defeat the point of this test.
	if err := mgr.pending.Put(old.SessionID, old); err != nil {
		t.Fatal(err)
	}

	reaped, err := mgr.SweepStalePending(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(reaped) != 1 || reaped[0] != meta.ID {
		t.Fatalf("expected session to be reaped, got %v", reaped)
	}
}

func TestPutPendingRefreshesUpdatedAt(t *testing.T) {
	mgr := newTestManager(t, &fakeRuntime{})
	meta, _ := mgr.CreateSession("test", "fake", "model-x")

	old := time.Now().Add(-20 * time.Minute)
	if err := mgr.putPending(PendingStreamState{SessionID: meta.ID, Stage: StageStreaming, StartedAt: old}); err != nil {
		t.Fatal(err)
	}

	p, found, err := mgr.GetPending(meta.ID)
	if err != nil || !found {
		t.Fatalf("expected pending state, found=%v err=%v", found, err)
	}
	if p.Stale(time.Now()) {
		t.Fatal("a freshly written pending state must not be considered stale even with an old StartedAt")
	}
}

func TestHeartbeatChecksTimeouts(t *testing.T) {
	hb := NewHeartbeat()
	now := time.Now()
	hb.Ping("s1", now.Add(-90*time.Second))

	expired := hb.CheckTimeouts(now)
	if len(expired) != 1 || expired[0] != "s1" {
		t.Fatalf("expected s1 to have timed out, got %v", expired)
	}

	hb.RecordPong("s1", now.Add(-100*time.Second))
	stillExpired := hb.CheckTimeouts(now)
	if len(stillExpired) != 1 {
		t.Fatalf("pong predating the latest ping should not clear the timeout, got %v", stillExpired)
	}
}
