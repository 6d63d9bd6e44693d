package reply

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aituber/presenter-pipeline/api/pipeline"
	"github.com/aituber/presenter-pipeline/internal/observability/status"
	"github.com/aituber/presenter-pipeline/internal/provider/contracts"
	"github.com/aituber/presenter-pipeline/internal/queue"
)

type fakeReplier struct {
	mu      sync.Mutex
	calls   int
	respond func(call int, req contracts.ReplyRequest) (contracts.ReplyResult, error)
}

func (f *fakeReplier) Reply(_ context.Context, req contracts.ReplyRequest) (contracts.ReplyResult, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	respond := f.respond
	f.mu.Unlock()
	return respond(call, req)
}

func (f *fakeReplier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	mu       sync.Mutex
	capacity bool
	convs    []pipeline.Conversation
}

func (f *fakeSink) HasCapacity() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.capacity
}

func (f *fakeSink) Enqueue(conv pipeline.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convs = append(f.convs, conv)
}

func (f *fakeSink) setCapacity(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capacity = ok
}

func (f *fakeSink) conversations() []pipeline.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pipeline.Conversation, len(f.convs))
	copy(out, f.convs)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func testConfig() Config {
	return Config{
		CannedReplyDelay: time.Millisecond,
		InitialBackoff:   time.Millisecond,
		PollInterval:     time.Millisecond,
	}
}

func TestReplyNormalizedAndForwarded(t *testing.T) {
	t.Parallel()

	replier := &fakeReplier{respond: func(_ int, req contracts.ReplyRequest) (contracts.ReplyResult, error) {
		if req.InputText != "質問です" {
			t.Errorf("unexpected input %q", req.InputText)
		}
		return contracts.ReplyResult{ReplyText: "ｱﾝｻｰはＡＢＣです", VisualCueRef: "slide_3"}, nil
	}}

	in := queue.NewPromotion[pipeline.Question]()
	sink := &fakeSink{capacity: true}
	stage := New(testConfig(), in, replier, sink, status.NewBoard())

	q := pipeline.NewQuestion("質問です", "a", "", false)
	in.Push(q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	waitFor(t, func() bool { return len(sink.conversations()) == 1 })
	conv := sink.conversations()[0]
	if conv.Question.ID != q.ID {
		t.Fatalf("conversation lost its question: %+v", conv)
	}
	if conv.ReplyText != "アンサーはABCです" {
		t.Fatalf("reply not canonicalized: %q", conv.ReplyText)
	}
	if conv.VisualCueRef != "slide_3" {
		t.Fatalf("visual cue lost: %q", conv.VisualCueRef)
	}
}

func TestTriggerPhraseBypassesReplier(t *testing.T) {
	t.Parallel()

	replier := &fakeReplier{respond: func(int, contracts.ReplyRequest) (contracts.ReplyResult, error) {
		return contracts.ReplyResult{}, errors.New("must not be called")
	}}

	in := queue.NewPromotion[pipeline.Question]()
	sink := &fakeSink{capacity: true}
	stage := New(testConfig(), in, replier, sink, status.NewBoard())
	in.Push(pipeline.NewQuestion("新しいキーボードが欲しいです", "a", "", false))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	waitFor(t, func() bool { return len(sink.conversations()) == 1 })
	conv := sink.conversations()[0]
	if conv.ReplyText != "なるほどですね！皆さんの声を聞かせていただき、ありがとうございます" {
		t.Fatalf("unexpected canned reply %q", conv.ReplyText)
	}
	if conv.VisualCueRef != "slide_1" {
		t.Fatalf("unexpected canned cue %q", conv.VisualCueRef)
	}
	if replier.callCount() != 0 {
		t.Fatalf("replier must not be consulted for trigger phrases")
	}
}

func TestStopWordReplyStillForwarded(t *testing.T) {
	t.Parallel()

	replier := &fakeReplier{respond: func(int, contracts.ReplyRequest) (contracts.ReplyResult, error) {
		return contracts.ReplyResult{ReplyText: "これは禁止語を含みます"}, nil
	}}

	cfg := testConfig()
	cfg.StopWords = []string{"禁止語"}
	in := queue.NewPromotion[pipeline.Question]()
	sink := &fakeSink{capacity: true}
	stage := New(cfg, in, replier, sink, status.NewBoard())
	in.Push(pipeline.NewQuestion("q", "a", "", false))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	waitFor(t, func() bool { return len(sink.conversations()) == 1 })
	if sink.conversations()[0].ReplyText != "これは禁止語を含みます" {
		t.Fatalf("stop-word replies must still flow downstream")
	}
}

func TestBackpressureHoldsQuestions(t *testing.T) {
	t.Parallel()

	replier := &fakeReplier{respond: func(int, contracts.ReplyRequest) (contracts.ReplyResult, error) {
		return contracts.ReplyResult{ReplyText: "r"}, nil
	}}

	in := queue.NewPromotion[pipeline.Question]()
	sink := &fakeSink{capacity: false}
	stage := New(testConfig(), in, replier, sink, status.NewBoard())
	in.Push(pipeline.NewQuestion("held", "a", "", false))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	time.Sleep(10 * time.Millisecond)
	if in.Len() != 1 || replier.callCount() != 0 {
		t.Fatalf("question must stay queued while synthesis is full")
	}

	sink.setCapacity(true)
	waitFor(t, func() bool { return len(sink.conversations()) == 1 })
}

func TestAudiencePromotedPastFiller(t *testing.T) {
	t.Parallel()

	replier := &fakeReplier{respond: func(_ int, req contracts.ReplyRequest) (contracts.ReplyResult, error) {
		return contracts.ReplyResult{ReplyText: req.InputText}, nil
	}}

	in := queue.NewPromotion[pipeline.Question]()
	sink := &fakeSink{capacity: true}
	board := status.NewBoard()
	stage := New(testConfig(), in, replier, sink, board)

	auto := pipeline.NewQuestion("filler", "bot", "", true)
	live := pipeline.NewQuestion("live", "a", "", false)
	in.Push(auto)
	in.Push(live)
	board.Append(auto)
	board.Append(live)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	waitFor(t, func() bool { return len(sink.conversations()) == 1 })
	if sink.conversations()[0].Question.ID != live.ID {
		t.Fatalf("live question must be served first")
	}
	if board.Contains(auto) {
		t.Fatalf("skipped filler must leave the pending board")
	}
}

func TestRetriesExhaustedKeepsBoardEntry(t *testing.T) {
	t.Parallel()

	replier := &fakeReplier{respond: func(int, contracts.ReplyRequest) (contracts.ReplyResult, error) {
		return contracts.ReplyResult{}, errors.New("reply down")
	}}

	cfg := testConfig()
	cfg.MaxRetries = 2
	in := queue.NewPromotion[pipeline.Question]()
	sink := &fakeSink{capacity: true}
	board := status.NewBoard()
	stage := New(cfg, in, replier, sink, board)

	q := pipeline.NewQuestion("doomed", "a", "", false)
	in.Push(q)
	board.Append(q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go stage.Run(ctx)

	waitFor(t, func() bool { return replier.callCount() >= 2 })
	time.Sleep(5 * time.Millisecond)
	if len(sink.conversations()) != 0 {
		t.Fatalf("exhausted question must not reach synthesis")
	}
	if !board.Contains(q) {
		t.Fatalf("dropped question stays on the board until an operator clears it")
	}
}
