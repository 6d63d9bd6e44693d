package autoquestion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aituber/presenter-pipeline/api/pipeline"
	"github.com/aituber/presenter-pipeline/internal/observability/status"
	"github.com/aituber/presenter-pipeline/internal/queue"
)

type fakeFiller struct {
	mu            sync.Mutex
	questionCalls int
	messageCalls  int
	questionErrs  int
	question      string
	message       string
}

func (f *fakeFiller) DefaultQuestion(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questionCalls++
	if f.questionErrs > 0 {
		f.questionErrs--
		return "", errors.New("filler backend down")
	}
	return f.question, nil
}

func (f *fakeFiller) TemplateMessage(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messageCalls++
	return f.message, nil
}

func (f *fakeFiller) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.questionCalls, f.messageCalls
}

type fakeSpeechSink struct {
	mu    sync.Mutex
	convs []pipeline.Conversation
}

func (f *fakeSpeechSink) Enqueue(conv pipeline.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convs = append(f.convs, conv)
}

func (f *fakeSpeechSink) conversations() []pipeline.Conversation {
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

func testConfig(randValue float64) Config {
	return Config{
		QuietSeconds:     1,
		SamplesPerSecond: 3,
		SampleInterval:   time.Millisecond,
		RetryDelay:       time.Millisecond,
		Rand:             func() float64 { return randValue },
	}
}

func TestQuietPipelineGetsDefaultQuestion(t *testing.T) {
	t.Parallel()

	filler := &fakeFiller{question: "最近ハマっていることは？"}
	approved := queue.NewPromotion[pipeline.Question]()
	sink := &fakeSpeechSink{}
	board := status.NewBoard()

	gen := New(testConfig(0.1), filler, approved, sink, board, func() int { return 0 })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gen.Run(ctx)

	waitFor(t, func() bool { return approved.Len() >= 1 })
	cancel()

	q, _, ok := approved.PopNext()
	if !ok || q.Text != "最近ハマっていることは？" {
		t.Fatalf("unexpected injected question %+v ok=%v", q, ok)
	}
	if !q.IsAutoGenerated {
		t.Fatalf("injected question must be marked auto-generated")
	}
	if q.AuthorName != "名無しさん" {
		t.Fatalf("unexpected author %q", q.AuthorName)
	}
	if !board.Contains(q) {
		t.Fatalf("injected question must appear on the pending board")
	}
	if len(sink.conversations()) != 0 {
		t.Fatalf("question path must not touch the speech sink")
	}
}

func TestQuietPipelineGetsTemplateMessage(t *testing.T) {
	t.Parallel()

	filler := &fakeFiller{message: "コメントお待ちしています！"}
	approved := queue.NewPromotion[pipeline.Question]()
	sink := &fakeSpeechSink{}

	gen := New(testConfig(0.9), filler, approved, sink, status.NewBoard(), func() int { return 0 })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gen.Run(ctx)

	waitFor(t, func() bool { return len(sink.conversations()) >= 1 })
	cancel()

	conv := sink.conversations()[0]
	if conv.ReplyText != "コメントお待ちしています！" {
		t.Fatalf("unexpected message %+v", conv)
	}
	if conv.Question.Text != "" || !conv.Question.IsAutoGenerated {
		t.Fatalf("template message must ride an empty auto question, got %+v", conv.Question)
	}
	if conv.VisualCueRef != "slide_1" {
		t.Fatalf("unexpected cue %q", conv.VisualCueRef)
	}
	if approved.Len() != 0 {
		t.Fatalf("message path must not touch the approved queue")
	}
}

func TestOscillatingQueueStillGetsFiller(t *testing.T) {
	t.Parallel()

	filler := &fakeFiller{question: "息継ぎの質問"}
	approved := queue.NewPromotion[pipeline.Question]()

	// The count alternates across the threshold every sample. Any dip within
	// a window is enough; the window never restarts.
	var sample atomic.Int32
	pending := func() int {
		if sample.Add(1)%2 == 0 {
			return 10
		}
		return 0
	}

	gen := New(testConfig(0.1), filler, approved, &fakeSpeechSink{}, status.NewBoard(), pending)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gen.Run(ctx)

	waitFor(t, func() bool { return approved.Len() >= 1 })
}

func TestBusyPipelineSuppressesInjection(t *testing.T) {
	t.Parallel()

	filler := &fakeFiller{question: "q"}
	approved := queue.NewPromotion[pipeline.Question]()
	gen := New(testConfig(0.1), filler, approved, &fakeSpeechSink{}, status.NewBoard(), func() int { return 10 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gen.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	questions, messages := filler.counts()
	if questions != 0 || messages != 0 || approved.Len() != 0 {
		t.Fatalf("busy pipeline must not be interrupted: q=%d m=%d len=%d", questions, messages, approved.Len())
	}
}

func TestFetchFailureRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	filler := &fakeFiller{question: "ようやく届いた質問", questionErrs: 3}
	approved := queue.NewPromotion[pipeline.Question]()
	gen := New(testConfig(0.1), filler, approved, &fakeSpeechSink{}, status.NewBoard(), func() int { return 0 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gen.Run(ctx)

	waitFor(t, func() bool { return approved.Len() >= 1 })
	questions, _ := filler.counts()
	if questions < 4 {
		t.Fatalf("expected at least 4 fetch attempts, got %d", questions)
	}
}
