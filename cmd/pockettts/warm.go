package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/example/go-pocket-tts/internal/config"
	"github.com/example/go-pocket-tts/internal/orchestrator"
	"github.com/example/go-pocket-tts/internal/preloader"
	"github.com/example/go-pocket-tts/internal/tts"
	"github.com/example/go-pocket-tts/internal/voiceasset"
	"github.com/spf13/cobra"
)

// newWarmCmd exposes the preloader as a one-shot CLI trigger, since
// warm_on_startup defaults to off and some deployments prefer to warm
// the cache from an external scheduler rather than on process boot.
func newWarmCmd() *cobra.Command {
	var inspectOnly bool

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Trigger or inspect cache-warming of frequent phrases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			pl, queueLen, err := buildWarmPreloader(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			if inspectOnly {
				_, err = fmt.Fprintf(os.Stdout, "queued warming tasks: %d\n", queueLen)
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			warmed := pl.TriggerOnce(ctx)

			_, err = fmt.Fprintf(os.Stdout, "warming pass complete: %d tasks attempted, %d remaining in queue\n", warmed, pl.QueueLen())
			return err
		},
	}

	cmd.Flags().BoolVar(&inspectOnly, "inspect", false, "Only report the current queue length, do not synthesize")

	return cmd
}

// buildWarmPreloader assembles a standalone orchestrator+preloader pair,
// mirroring internal/server's buildCore but without an HTTP listener,
// seeds the default phrase buckets, and returns the queue length observed
// before any warming runs.
func buildWarmPreloader(ctx context.Context, cfg config.Config) (*preloader.Preloader, int, error) {
	backend, err := config.NormalizeBackend(cfg.TTS.Backend)
	if err != nil {
		return nil, 0, err
	}

	var svc *tts.Service
	if backend == config.BackendNative || backend == config.BackendNativeONNX || backend == config.BackendNativeSafetensors {
		svc, err = tts.NewService(cfg)
		if err != nil {
			return nil, 0, err
		}
	}

	var voices *voiceasset.Manager
	if cfg.Voice.VoicesDir != "" {
		vm, err := voiceasset.NewManager(cfg.Voice.VoicesDir, voiceasset.WithCombinedFile(cfg.Voice.UseCombinedFile))
		if err == nil {
			voices = vm
		}
	}

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.CacheCapacity = cfg.Cache.MaxEntries
	orchCfg.CacheTTL = time.Duration(cfg.Cache.TTLSeconds) * time.Second
	orchCfg.MaxBlendVoices = cfg.Voice.MaxBlendVoices

	var model orchestrator.Model
	if svc != nil {
		model = svc
	}

	orch, err := orchestrator.New(orchCfg, model, voices)
	if err != nil {
		return nil, 0, err
	}

	plCfg := preloader.Config{
		WarmOnStartup:     cfg.Preload.WarmOnStartup,
		IdleThreshold:     time.Duration(cfg.Preload.IdleThresholdSecs * float64(time.Second)),
		WarmingBatchSize:  cfg.Preload.WarmingBatchSize,
		MaxConcurrentWarm: cfg.Preload.MaxConcurrentWarm,
		CacheTTL:          time.Duration(cfg.Preload.CacheTTLHours) * time.Hour,
	}

	pl := preloader.New(orch, plCfg, nil)
	pl.SeedDefaultPhrases(cfg.Preload.PrimaryVoices)

	return pl, pl.QueueLen(), nil
}
