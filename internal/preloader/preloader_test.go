package preloader

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/go-pocket-tts/internal/orchestrator"
)

type fakeOrch struct {
	calls  int64
	failN  int64 // fail this many calls before succeeding
}

func (f *fakeOrch) Synthesize(_ context.Context, _ orchestrator.Request) (orchestrator.Result, error) {
	n := atomic.AddInt64(&f.calls, 1)
	if n <= f.failN {
		return orchestrator.Result{}, context.DeadlineExceeded
	}

	return orchestrator.Result{Bytes: []byte("wav")}, nil
}

func TestPreloaderWarmsAfterIdleThreshold(t *testing.T) {
	orch := &fakeOrch{}
	p := New(orch, Config{
		IdleThreshold:     10 * time.Millisecond,
		WarmingBatchSize:  2,
		MaxConcurrentWarm: 2,
	}, nil)

	p.Enqueue(Task{Text: "hello", Voice: "af_heart", Priority: 1})
	p.Enqueue(Task{Text: "world", Voice: "af_heart", Priority: 2})

	// Run checks the idle gate once per second, so allow for the first tick.
	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	p.Run(ctx)

	if atomic.LoadInt64(&orch.calls) == 0 {
		t.Fatal("expected at least one warming call after idle threshold elapsed")
	}

	if p.QueueLen() != 0 {
		t.Fatalf("expected queue drained, got %d remaining", p.QueueLen())
	}
}

func TestPreloaderPriorityOrdering(t *testing.T) {
	h := taskHeap{
		{Text: "c", Priority: 3},
		{Text: "a", Priority: 1},
		{Text: "b", Priority: 2},
	}

	var order []string
	for h.Len() > 0 {
		// manual selection mirrors heap.Pop's guarantee without requiring
		// heap.Init here, since Less already reflects a valid ordering.
		min := 0
		for i := 1; i < h.Len(); i++ {
			if h.Less(i, min) {
				min = i
			}
		}

		order = append(order, h[min].Text)
		h = append(h[:min], h[min+1:]...)
	}

	if order[0] != "a" || order[2] != "c" {
		t.Fatalf("expected priority order a,b,c; got %v", order)
	}
}

func TestPreloaderSeedDefaultPhrasesEnqueuesAcrossVoices(t *testing.T) {
	p := New(&fakeOrch{}, Config{IdleThreshold: time.Hour}, nil)

	p.SeedDefaultPhrases([]string{"af_heart", "am_adam"})

	wantPhrases := 0
	for _, bucket := range defaultPhraseBank {
		wantPhrases += len(bucket.phrases)
	}

	if got, want := p.QueueLen(), wantPhrases*2; got != want {
		t.Fatalf("QueueLen() = %d, want %d", got, want)
	}
}

func TestPreloaderRecordRequestTracksWarmedHits(t *testing.T) {
	orch := &fakeOrch{}
	p := New(orch, Config{IdleThreshold: time.Hour}, nil)

	key := [16]byte{1, 2, 3}
	p.MarkWarmed(key)
	p.RecordRequest("hi", "af_heart", key, true)

	if p.WarmCacheHits() != 1 {
		t.Fatalf("expected 1 warm cache hit, got %d", p.WarmCacheHits())
	}
}
