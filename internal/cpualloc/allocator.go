// Package cpualloc implements a dynamic CPU allocator: an advisory
// component that periodically samples CPU utilization and
// recommends an inference thread count, debounced by a cooldown period.
// The orchestrator holds an Allocator but does not read its recommendation
// during synthesis; Recommended and Rescan are queried by their callers
// (e.g. the optimize command).
package cpualloc

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Sampler reports system CPU utilization as a percentage in [0,100]. The
// default implementation reads /proc/stat; tests supply a fake.
type Sampler interface {
	UtilizationPercent() (float64, error)
}

// Config mirrors config.HardwareConfig.
type Config struct {
	MinThresholdPercent float64
	MaxThresholdPercent float64
	MaxCores            int
	Cooldown            time.Duration
	RescanCron          string
}

// Allocator tracks a recommended thread count, adjusted on a cooldown by
// observed CPU utilization. Zero value is not usable; construct with New.
type Allocator struct {
	cfg     Config
	sampler Sampler
	log     *slog.Logger

	mu          sync.Mutex
	current     int
	lastChanged time.Time

	cron *cronlib.Cron
}

// New builds an Allocator seeded at runtime.NumCPU threads (or MaxCores,
// whichever is smaller, when MaxCores > 0).
func New(cfg Config, sampler Sampler, log *slog.Logger) *Allocator {
	if log == nil {
		log = slog.Default()
	}

	if sampler == nil {
		sampler = &ProcStatSampler{}
	}

	seed := runtime.NumCPU()
	if cfg.MaxCores > 0 && cfg.MaxCores < seed {
		seed = cfg.MaxCores
	}

	return &Allocator{
		cfg:     cfg,
		sampler: sampler,
		log:     log,
		current: seed,
	}
}

// Recommended returns the current advisory thread count.
func (a *Allocator) Recommended() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.current
}

// Rescan samples utilization and adjusts the recommendation if outside
// thresholds and the cooldown has elapsed. Returns the (possibly
// unchanged) recommendation.
func (a *Allocator) Rescan(now time.Time) int {
	util, err := a.sampler.UtilizationPercent()
	if err != nil {
		a.log.Warn("cpualloc: utilization sample failed", "error", err)
		return a.Recommended()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if now.Sub(a.lastChanged) < a.cfg.Cooldown {
		return a.current
	}

	maxCores := a.cfg.MaxCores
	if maxCores <= 0 {
		maxCores = runtime.NumCPU()
	}

	next := a.current

	switch {
	case util < a.cfg.MinThresholdPercent && a.current < maxCores:
		next = a.current + 1
	case util > a.cfg.MaxThresholdPercent && a.current > 1:
		next = a.current - 1
	}

	if next != a.current {
		a.log.Info("cpualloc: adjusting thread recommendation",
			"from", a.current, "to", next, "utilization_percent", util)
		a.current = next
		a.lastChanged = now
	}

	return a.current
}

// Start launches the periodic rescan on cfg.RescanCron. Returns a stop
// function; a no-op Allocator (empty cron spec) returns a no-op stop.
func (a *Allocator) Start(ctx context.Context) (stop func(), err error) {
	if a.cfg.RescanCron == "" {
		return func() {}, nil
	}

	c := cronlib.New()

	_, err = c.AddFunc(a.cfg.RescanCron, func() {
		a.Rescan(time.Now())
	})
	if err != nil {
		return nil, err
	}

	a.cron = c
	c.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	return func() { c.Stop() }, nil
}
