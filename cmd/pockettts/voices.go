package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/example/go-pocket-tts/internal/voiceasset"
	"github.com/spf13/cobra"
)

func newVoicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "Inspect and manage style-vector voice assets",
	}

	cmd.AddCommand(newVoicesListCmd())
	cmd.AddCommand(newVoicesCombineCmd())
	cmd.AddCommand(newVoicesBlendCmd())
	cmd.AddCommand(newVoicesDeleteCmd())

	return cmd
}

func openVoiceManager() (*voiceasset.Manager, error) {
	cfg, err := requireConfig()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Voice.VoicesDir) == "" {
		return nil, fmt.Errorf("voices_dir is not configured")
	}
	return voiceasset.NewManager(cfg.Voice.VoicesDir, voiceasset.WithCombinedFile(cfg.Voice.UseCombinedFile))
}

func newVoicesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded voice names",
		RunE: func(_ *cobra.Command, _ []string) error {
			mgr, err := openVoiceManager()
			if err != nil {
				return err
			}
			for _, name := range mgr.List() {
				if _, err := fmt.Fprintln(os.Stdout, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newVoicesCombineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "combine",
		Short: "Regenerate the combined_voices archive from individual voice files",
		RunE: func(_ *cobra.Command, _ []string) error {
			mgr, err := openVoiceManager()
			if err != nil {
				return err
			}
			path, err := mgr.Combine()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(os.Stdout, path)
			return err
		},
	}
}

func newVoicesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a custom voice",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			mgr, err := openVoiceManager()
			if err != nil {
				return err
			}
			removed, err := mgr.DeleteCustom(args[0])
			if err != nil {
				return err
			}
			if removed {
				_, err = fmt.Fprintln(os.Stdout, "removed")
			} else {
				_, err = fmt.Fprintln(os.Stdout, "not found")
			}
			return err
		},
	}
}

// newVoicesBlendCmd previews a weighted style-vector blend without
// invoking synthesis -- useful to sanity-check a blend recipe (spec
// §4.3's "Blending (optional)") before sending it through /v1/audio/blend.
func newVoicesBlendCmd() *cobra.Command {
	var recipe []string

	cmd := &cobra.Command{
		Use:   "blend NAME=WEIGHT [NAME=WEIGHT ...]",
		Short: "Preview a weighted blend of voice style vectors",
		RunE: func(_ *cobra.Command, args []string) error {
			recipe = args

			mgr, err := openVoiceManager()
			if err != nil {
				return err
			}

			if len(recipe) == 0 {
				return fmt.Errorf("at least one NAME=WEIGHT pair is required")
			}

			assets := make([]*voiceasset.Asset, 0, len(recipe))
			weights := make([]float64, 0, len(recipe))

			for _, pair := range recipe {
				name, weightStr, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("invalid recipe entry %q, expected NAME=WEIGHT", pair)
				}
				weight, err := strconv.ParseFloat(weightStr, 64)
				if err != nil {
					return fmt.Errorf("invalid weight in %q: %w", pair, err)
				}
				asset, ok := mgr.Get(name)
				if !ok {
					return fmt.Errorf("voice %q not found", name)
				}
				assets = append(assets, asset)
				weights = append(weights, weight)
			}

			blended, err := voiceasset.BlendWeighted(assets, weights)
			if err != nil {
				return err
			}

			rows, cols := blended.Dims()
			_, err = fmt.Fprintf(os.Stdout, "blended shape: (%d, %d)\n", rows, cols)
			return err
		},
	}

	return cmd
}
