package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"LanFM/client"
	"LanFM/config"
	"LanFM/logger"
	"LanFM/model"
	"LanFM/player"

	"github.com/spf13/cobra"
)

var (
	agentServerURL string
	agentStatePath string
	agentLayout    string
	agentRoster    bool
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run a headless player agent",
	Long: `Run a headless player agent against a LanFM status service.
The agent keeps a stable device identity, sends status heartbeats and
mirrors the device roster.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		})

		statePath := agentStatePath
		if statePath == "" {
			statePath = filepath.Join(cfg.DataDir, "agent.local.json")
		}

		agent, err := client.NewAgent(client.AgentConfig{
			ServerURL:      agentServerURL,
			LocalStatePath: statePath,
			Layout:         model.Layout(agentLayout),
			Caps: player.Capabilities{
				RestartOnPrev: true,
				DeviceRoster:  agentRoster,
			},
			Heartbeat:  cfg.HeartbeatInterval,
			RosterPoll: cfg.RosterPoll,
		}, player.NullOutput{})
		if err != nil {
			logger.Fatal("failed to start agent", logger.ErrorField(err))
		}

		logger.Info("agent running",
			logger.String("server", agentServerURL),
			logger.String("deviceId", agent.DeviceID()))

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		agent.Run(ctx)

		logger.Info("agent stopped")
	},
}

func init() {
	agentCmd.Flags().StringVar(&agentServerURL, "server", "http://127.0.0.1:8080", "status service base URL")
	agentCmd.Flags().StringVar(&agentStatePath, "state", "", "local state file (default: DATA_DIR/agent.local.json)")
	agentCmd.Flags().StringVar(&agentLayout, "layout", "desktop", "layout preference: desktop, mobile or tv")
	agentCmd.Flags().BoolVar(&agentRoster, "roster", false, "poll and log the device roster")
	rootCmd.AddCommand(agentCmd)
}
