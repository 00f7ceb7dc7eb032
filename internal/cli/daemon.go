package cli

import (
	"github.com/MrCodeEU/LiveCheck/internal/daemon"
	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Serve liveness sessions on a unix socket",
	Long: `Serve liveness sessions on a unix socket.

Each connection exchanges JSON lines: {"type":"start","subject":"alice"},
then {"type":"frame",...} per frame with either landmarks or a JPEG image,
and optionally {"type":"cancel"} or {"type":"reset"}. Every request is
answered with the session status.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if socket, _ := cmd.Flags().GetString("socket"); socket != "" {
			cfg.Daemon.SocketPath = socket
		}
		return daemon.Run(cmd.Context(), cfg, logger)
	},
}

func init() {
	daemonCmd.Flags().String("socket", "", "Override the socket path from the configuration")
	rootCmd.AddCommand(daemonCmd)
}
