package cli

import (
	"fmt"
	"time"

	"github.com/MrCodeEU/LiveCheck/internal/liveness"
	"github.com/MrCodeEU/LiveCheck/pkg/models"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image>",
	Short: "Send an image to the landmark service and print the liveness signals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadImage(args[0])
		if err != nil {
			return err
		}

		client, err := models.NewLandmarkClient(cfg.Inference.Address, time.Duration(cfg.Inference.Timeout)*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to landmark service at %s: %w", cfg.Inference.Address, err)
		}
		defer func() { _ = client.Close() }()

		start := time.Now()
		lm, found, err := client.Detect(cmd.Context(), img)
		if err != nil {
			return err
		}
		logger.Debugf("Detection took %v", time.Since(start))

		if !found {
			fmt.Println("No face detected")
			return nil
		}

		params := liveness.FromConfig(cfg)
		sig, ok := liveness.ExtractSignals(lm, params.TurnLeft, params.TurnRight)
		if !ok {
			return fmt.Errorf("landmark service returned %d points, need at least %d", len(lm), models.MinLandmarks)
		}

		b := img.Bounds()
		region := liveness.FaceRegion(lm, b.Dx(), b.Dy(), params.PadX, params.PadY)

		fmt.Printf("Landmarks:   %d\n", len(lm))
		fmt.Printf("Eye AR:      left %.3f  right %.3f  (blink < %.2f)\n", sig.LeftEAR, sig.RightEAR, params.BlinkThreshold)
		fmt.Printf("Mouth ratio: %.3f  (open > %.2f, closed < %.2f)\n", sig.MouthRatio, params.MouthOpenMin, params.MouthClosedMax)
		fmt.Printf("Direction:   %s\n", sig.Direction)
		fmt.Printf("Depth:       %.4f\n", sig.Depth)
		fmt.Printf("Face region: %v\n", region)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
