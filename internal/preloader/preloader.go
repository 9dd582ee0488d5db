// Package preloader implements a cache warmer: a single background worker
// that proactively synthesizes high-frequency phrases during idle periods,
// with bounded concurrency and a priority queue.
//
// A Preloader only ever holds an orchestrator handle — never the
// application context — so it cannot see the preloader from the
// orchestrator side, which keeps the two packages from depending on
// each other.
package preloader

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/example/go-pocket-tts/internal/audiocache"
	"github.com/example/go-pocket-tts/internal/orchestrator"
)

// Task is one warming task: a phrase/voice pair queued for cache warming.
type Task struct {
	Text        string
	Voice       string
	Priority    int // 1 (instant words) .. 5 (dynamic usage-driven)
	Attempts    int
	MaxAttempts int
}

// Config mirrors config.PreloadConfig.
type Config struct {
	WarmOnStartup     bool
	IdleThreshold     time.Duration
	WarmingBatchSize  int
	MaxConcurrentWarm int
	CacheTTL          time.Duration
}

// Orchestrator is the subset of *orchestrator.Orchestrator the preloader
// needs: enough to synthesize (and thereby warm the cache) without taking
// a dependency on the whole application.
type Orchestrator interface {
	Synthesize(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error)
}

// Preloader runs the idle-time cache-warming loop.
type Preloader struct {
	orch Orchestrator
	cfg  Config
	log  *slog.Logger

	mu            sync.Mutex
	queue         taskHeap
	warming       bool
	lastRequestAt time.Time

	usageMu      sync.Mutex
	phraseUsage  map[string]int
	voiceUsage   map[string]int
	warmedCache  map[audiocache.Key]bool
	warmHitCount int
}

// New builds a Preloader. Warming does not start until Run is called;
// cfg.WarmOnStartup gates whether the caller should call Run at all (the
// caller decides, based on cfg.WarmOnStartup).
func New(orch Orchestrator, cfg Config, log *slog.Logger) *Preloader {
	if log == nil {
		log = slog.Default()
	}

	if cfg.WarmingBatchSize <= 0 {
		cfg.WarmingBatchSize = 5
	}

	if cfg.MaxConcurrentWarm <= 0 {
		cfg.MaxConcurrentWarm = 2
	}

	return &Preloader{
		orch:          orch,
		cfg:           cfg,
		log:           log,
		lastRequestAt: time.Now(),
		phraseUsage:   make(map[string]int),
		voiceUsage:    make(map[string]int),
		warmedCache:   make(map[audiocache.Key]bool),
	}
}

// Enqueue adds a warming task, defaulting MaxAttempts to 3 when unset.
func (p *Preloader) Enqueue(t Task) {
	if t.MaxAttempts <= 0 {
		t.MaxAttempts = 3
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	heap.Push(&p.queue, t)
}

// QueueLen reports the number of tasks still pending.
func (p *Preloader) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.queue.Len()
}

// RecordRequest marks that a production request just arrived, resetting
// the idle timer so warming does not compete with foreground synthesis:
// preloader tasks have no priority over production requests.
func (p *Preloader) RecordRequest(text, voice string, key audiocache.Key, wasCacheHit bool) {
	p.mu.Lock()
	p.lastRequestAt = time.Now()
	p.mu.Unlock()

	p.usageMu.Lock()
	defer p.usageMu.Unlock()
	p.phraseUsage[text]++
	p.voiceUsage[voice]++

	if wasCacheHit && p.warmedCache[key] {
		p.warmHitCount++
	}
}

// MarkWarmed records that key now lives in the cache because the
// preloader (not a production request) put it there.
func (p *Preloader) MarkWarmed(key audiocache.Key) {
	p.usageMu.Lock()
	defer p.usageMu.Unlock()
	p.warmedCache[key] = true
}

// WarmCacheHits returns how many production cache hits were attributable
// to preloader-warmed entries.
func (p *Preloader) WarmCacheHits() int {
	p.usageMu.Lock()
	defer p.usageMu.Unlock()

	return p.warmHitCount
}

// Run executes the warming-scheduler loop until ctx is cancelled.
func (p *Preloader) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Preloader) tick(ctx context.Context) {
	p.mu.Lock()

	if p.warming {
		p.mu.Unlock()
		return
	}

	idle := time.Since(p.lastRequestAt)
	if idle < p.cfg.IdleThreshold {
		p.mu.Unlock()
		return
	}

	batch := p.popBatch(p.cfg.WarmingBatchSize)
	p.warming = len(batch) > 0
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	defer func() {
		p.mu.Lock()
		p.warming = false
		p.mu.Unlock()
	}()

	p.warmBatch(ctx, batch)
}

// TriggerOnce pops and warms a single batch immediately, bypassing the
// idle-threshold gate that Run's ticker loop applies. Intended for an
// explicit warm CLI subcommand or HTTP admin call: an operator asking for
// a warming pass right now does not need the server to have been
// otherwise idle first. Returns the number of tasks popped (not the
// number that succeeded; see WarmCacheHits for outcome attribution).
func (p *Preloader) TriggerOnce(ctx context.Context) int {
	p.mu.Lock()
	if p.warming {
		p.mu.Unlock()
		return 0
	}

	batch := p.popBatch(p.cfg.WarmingBatchSize)
	p.warming = len(batch) > 0
	p.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	defer func() {
		p.mu.Lock()
		p.warming = false
		p.mu.Unlock()
	}()

	p.warmBatch(ctx, batch)
	return len(batch)
}

func (p *Preloader) popBatch(n int) []Task {
	var batch []Task

	for i := 0; i < n && p.queue.Len() > 0; i++ {
		batch = append(batch, heap.Pop(&p.queue).(Task))
	}

	return batch
}

func (p *Preloader) warmBatch(ctx context.Context, batch []Task) {
	wp := pool.New().WithMaxGoroutines(p.cfg.MaxConcurrentWarm)

	var mu sync.Mutex

	var requeue []Task

	for _, t := range batch {
		t := t
		wp.Go(func() {
			key := audiocache.NewKey(t.Text, t.Voice, 1.0, string(orchestrator.FormatWAV))

			_, err := p.orch.Synthesize(ctx, orchestrator.Request{
				Text:   t.Text,
				Voice:  t.Voice,
				Format: orchestrator.FormatWAV,
				Speed:  1.0,
			})
			if err != nil {
				p.log.Warn("preloader: warming task failed", "voice", t.Voice, "error", err)

				t.Attempts++
				if t.Attempts < t.MaxAttempts {
					mu.Lock()
					requeue = append(requeue, t)
					mu.Unlock()
				}

				return
			}

			p.MarkWarmed(key)
		})
	}

	wp.Wait()

	if len(requeue) > 0 {
		p.mu.Lock()
		for _, t := range requeue {
			heap.Push(&p.queue, t)
		}
		p.mu.Unlock()
	}
}

// taskHeap is an unbounded max-priority-first heap: lower Priority value is
// warmed first, so priority-1 instant words warm before anything else.
type taskHeap []Task

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].Priority < h[j].Priority }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(Task)) }

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}
