package cli

import (
	"fmt"
	"time"

	"github.com/MrCodeEU/LiveCheck/internal/daemon"
	"github.com/MrCodeEU/LiveCheck/internal/replay"
	"github.com/spf13/cobra"
)

var clientSubject string

var clientCmd = &cobra.Command{
	Use:   "client <fixture.yaml>",
	Short: "Stream a recorded fixture to a running daemon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fx, err := replay.Load(args[0])
		if err != nil {
			return err
		}

		c, err := daemon.Dial(cmd.Context(), cfg.Daemon.SocketPath)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		if _, err := c.Start(clientSubject); err != nil {
			return err
		}
		fmt.Printf("Session %s\n", c.SessionID())

		// The daemon picks its own challenge order, so fixture poses only
		// line up by chance; this mainly exercises the gate and spoof check
		base := time.Now()
		for i, f := range fx.Frames {
			st, err := c.Frame(daemon.Request{
				Landmarks:   f.Points(),
				Width:       fx.Width,
				Height:      fx.Height,
				TimestampMs: base.Add(time.Duration(f.TimestampMs) * time.Millisecond).UnixMilli(),
			})
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			logger.Debugf("frame %4d  %s", i, st)
			if st.Terminal() {
				fmt.Printf("Result: %s after %d frames\n", st.Kind, i+1)
				return nil
			}
		}

		st, err := c.Cancel()
		if err != nil {
			return err
		}
		fmt.Printf("Fixture exhausted, session %s\n", st.Kind)
		return nil
	},
}

func init() {
	clientCmd.Flags().StringVar(&clientSubject, "subject", "replay", "Subject name for lockout and history")
	rootCmd.AddCommand(clientCmd)
}
