package main

import (
	"fmt"
	"os"
	"time"

	"github.com/example/go-pocket-tts/internal/cpualloc"
	"github.com/spf13/cobra"
)

// newOptimizeCmd runs the dynamic CPU allocator's sampling decision once
// and prints the resulting advisory thread count, so an operator can
// inspect or script against the recommendation without standing up the
// full server.
func newOptimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Sample CPU utilization once and print the recommended thread count",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			allocCfg := cpualloc.Config{
				MinThresholdPercent: cfg.Hardware.MinThresholdPercent,
				MaxThresholdPercent: cfg.Hardware.MaxThresholdPercent,
				MaxCores:            cfg.Hardware.MaxCores,
				Cooldown:            time.Duration(cfg.Hardware.AllocationCooldownSec) * time.Second,
				RescanCron:          cfg.Hardware.RescanCron,
			}

			alloc := cpualloc.New(allocCfg, nil, nil)
			recommended := alloc.Rescan(time.Now())

			_, err = fmt.Fprintf(os.Stdout, "recommended threads: %d\n", recommended)
			return err
		},
	}
}
