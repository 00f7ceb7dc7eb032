package cli

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/MrCodeEU/LiveCheck/internal/history"
	"github.com/MrCodeEU/LiveCheck/internal/liveness"
	"github.com/MrCodeEU/LiveCheck/internal/replay"
	"github.com/spf13/cobra"
)

var replayOpts struct {
	imagePath string
	outPath   string
	record    bool
}

var replayCmd = &cobra.Command{
	Use:   "replay <fixture.yaml>",
	Short: "Run a liveness session from recorded landmark frames",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(args[0])
	},
}

var simulateOpts struct {
	seed   int64
	width  int
	height int
	spoof  bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <fixture.yaml>",
	Short: "Write a synthetic fixture of a live subject or a flat spoof",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := liveness.FromConfig(cfg)
		fx := replay.Simulate(params, simulateOpts.seed, simulateOpts.width, simulateOpts.height, simulateOpts.spoof)
		if err := fx.Save(args[0]); err != nil {
			return err
		}
		fmt.Printf("Wrote %d %s frames to %s\n", len(fx.Frames), fx.Name, args[0])
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayOpts.imagePath, "image", "", "Image used as the pixels of every frame")
	replayCmd.Flags().StringVarP(&replayOpts.outPath, "out", "o", "", "Write the captured face to this file")
	replayCmd.Flags().BoolVar(&replayOpts.record, "record", false, "Record the outcome in the attempt history")

	simulateCmd.Flags().Int64Var(&simulateOpts.seed, "seed", 1, "Seed that fixes the challenge order")
	simulateCmd.Flags().IntVar(&simulateOpts.width, "width", 640, "Frame width in pixels")
	simulateCmd.Flags().IntVar(&simulateOpts.height, "height", 480, "Frame height in pixels")
	simulateCmd.Flags().BoolVar(&simulateOpts.spoof, "spoof", false, "Simulate a flat photo instead of a live face")

	rootCmd.AddCommand(replayCmd, simulateCmd)
}

func runReplay(path string) error {
	fx, err := replay.Load(path)
	if err != nil {
		return err
	}

	var img image.Image
	if replayOpts.imagePath != "" {
		img, err = loadImage(replayOpts.imagePath)
		if err != nil {
			return err
		}
	}

	params := liveness.FromConfig(cfg)
	ctrl := fx.Controller(params, logger)

	var last liveness.StatusKind
	res, err := fx.Run(ctrl, img, func(i int, st liveness.Status) {
		if st.Kind != last || st.Kind == liveness.StatusChallenge {
			logger.Debugf("frame %4d  %s", i, st)
		}
		if st.Kind != last {
			fmt.Printf("%4d  %s\n", i, st)
			last = st.Kind
		}
	})
	if err != nil {
		return err
	}

	fmt.Printf("Result: %s after %d of %d frames (challenges %v)\n",
		res.Final.Kind, res.Frames, len(fx.Frames), res.Session.ChallengeOrder())

	if artifact := res.Session.Artifact(); artifact != nil {
		fmt.Printf("Capture: %v (%dx%d)\n", artifact.Region, artifact.Width, artifact.Height)
		if replayOpts.outPath != "" && len(artifact.JPEG) > 0 {
			if err := os.MkdirAll(filepath.Dir(replayOpts.outPath), 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			if err := os.WriteFile(replayOpts.outPath, artifact.JPEG, 0644); err != nil {
				return fmt.Errorf("failed to write capture: %w", err)
			}
			fmt.Printf("Saved capture to %s\n", replayOpts.outPath)
		}
	}

	if replayOpts.record {
		if err := recordReplay(fx, res); err != nil {
			return err
		}
	}

	if res.Final.Kind != liveness.StatusSuccess {
		return fmt.Errorf("liveness check did not pass: %s", res.Final.Kind)
	}
	return nil
}

func recordReplay(fx *replay.Fixture, res *replay.Result) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Sessions left running by a short fixture are recorded as cancelled
	if res.Session.Active() {
		fmt.Println("Fixture ended before the session finished")
	}

	outcome := res.Session.Outcome()
	outcome.Subject = "replay:" + fx.Name
	if !outcome.Status.Terminal() {
		outcome.Status = liveness.StatusCancelled
	}
	if err := store.RecordOutcome(outcome); err != nil {
		return err
	}
	fmt.Printf("Recorded attempt %s\n", outcome.SessionID)
	return nil
}

func openHistory() (*history.Store, error) {
	artifactDir := ""
	if cfg.Storage.SaveArtifacts {
		artifactDir = filepath.Join(cfg.Storage.DataDir, "artifacts")
	}
	return history.NewStore(cfg.Storage.DatabasePath, artifactDir)
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
