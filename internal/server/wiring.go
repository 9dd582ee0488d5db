package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/go-pocket-tts/internal/config"
	"github.com/example/go-pocket-tts/internal/cpualloc"
	"github.com/example/go-pocket-tts/internal/orchestrator"
	"github.com/example/go-pocket-tts/internal/perf"
	"github.com/example/go-pocket-tts/internal/preloader"
	"github.com/example/go-pocket-tts/internal/textpipe"
	"github.com/example/go-pocket-tts/internal/tts"
	"github.com/example/go-pocket-tts/internal/voiceasset"
)

// textpipeConfigFrom adapts config.TextConfig (the persisted/flag-bound
// shape) to textpipe.Config, the immutable value a Pipeline samples once
// per request.
func textpipeConfigFrom(c config.TextConfig) textpipe.Config {
	return textpipe.Config{
		ExpandContractions:      c.ExpandContractions,
		UsePronunciationRules:   c.UsePronunciationRules,
		UseLegacyPhonetic:       c.UseLegacyPhonetic,
		UseInterjectionFixes:    c.UseInterjectionFixes,
		UseTickerProcessing:     c.UseTickerProcessing,
		UseProperNameFixes:      c.UseProperNameFixes,
		UseAdvancedCurrency:     c.UseAdvancedCurrency,
		UseEnhancedDateTime:     c.UseEnhancedDateTime,
		UseAdvancedSymbols:      c.UseAdvancedSymbols,
		UseEspeakSymbols:        c.UseEspeakSymbols,
		PunctuationMode:         c.PunctuationMode,
		PreserveWordCount:       c.PreserveWordCount,
		PreserveOriginalOnError: c.PreserveOriginalOnErr,
		WordCountToleranceFrac:  c.WordCountToleranceFrac,
	}
}

func cpuallocConfigFrom(c config.HardwareConfig) cpualloc.Config {
	return cpualloc.Config{
		MinThresholdPercent: c.MinThresholdPercent,
		MaxThresholdPercent: c.MaxThresholdPercent,
		MaxCores:            c.MaxCores,
		Cooldown:            time.Duration(c.AllocationCooldownSec) * time.Second,
		RescanCron:          c.RescanCron,
	}
}

func preloaderConfigFrom(c config.PreloadConfig) preloader.Config {
	return preloader.Config{
		WarmOnStartup:     c.WarmOnStartup,
		IdleThreshold:     time.Duration(c.IdleThresholdSecs * float64(time.Second)),
		WarmingBatchSize:  c.WarmingBatchSize,
		MaxConcurrentWarm: c.MaxConcurrentWarm,
		CacheTTL:          time.Duration(c.CacheTTLHours) * time.Hour,
	}
}

// coreAssembly bundles every §4 side-component the server needs to wire
// the OpenAI-compatible surface and the background warmer.
type coreAssembly struct {
	orchestrator *orchestrator.Orchestrator
	voices       *voiceasset.Manager
	monitor      *perf.Monitor
	allocator    *cpualloc.Allocator
	preloader    *preloader.Preloader
	stop         func()
}

// buildCore loads voice assets, constructs the orchestrator, perf monitor,
// CPU allocator, and preloader, starts the allocator's periodic rescan, and
// starts the preloader loop only when WarmOnStartup is set. Voice asset
// loading failures are non-fatal: when no voice loads, the orchestrator
// runs without voice resolution, mirroring the CLI-backend path which has
// no concept of style vectors at all.
func buildCore(ctx context.Context, cfg config.Config, svc *tts.Service, log *slog.Logger) (*coreAssembly, error) {
	if log == nil {
		log = slog.Default()
	}

	var voices *voiceasset.Manager

	if cfg.Voice.VoicesDir != "" {
		vm, err := voiceasset.NewManager(cfg.Voice.VoicesDir, voiceasset.WithLogger(log), voiceasset.WithCombinedFile(cfg.Voice.UseCombinedFile))
		if err != nil {
			log.Warn("voiceasset: no style-vector voices loaded; blending and voice-by-name resolution disabled", "error", err)
		} else {
			voices = vm
		}
	}

	monitor := perf.New(0)

	allocator := cpualloc.New(cpuallocConfigFrom(cfg.Hardware), nil, log)
	if _, err := allocator.Start(ctx); err != nil {
		log.Warn("cpualloc: failed to start periodic rescan", "error", err)
	}

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.CacheCapacity = cfg.Cache.MaxEntries
	orchCfg.CacheTTL = time.Duration(cfg.Cache.TTLSeconds) * time.Second
	orchCfg.PipelineConfig = textpipeConfigFrom(cfg.Text)
	orchCfg.MaxBlendVoices = cfg.Voice.MaxBlendVoices

	var model orchestrator.Model
	if svc != nil {
		model = svc
	}

	orch, err := orchestrator.New(orchCfg, model, voices,
		orchestrator.WithMonitor(monitor),
		orchestrator.WithAllocator(allocator),
		orchestrator.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	pl := preloader.New(orch, preloaderConfigFrom(cfg.Preload), log)
	if cfg.Preload.WarmOnStartup {
		pl.SeedDefaultPhrases(cfg.Preload.PrimaryVoices)
		go pl.Run(ctx)
	}

	return &coreAssembly{
		orchestrator: orch,
		voices:       voices,
		monitor:      monitor,
		allocator:    allocator,
		preloader:    pl,
	}, nil
}
