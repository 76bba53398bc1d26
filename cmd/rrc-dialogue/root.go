package main

import (
	"os"

	"tarun-kavipurapu/rrc-dialogue/pkg/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rrc-dialogue",
	Short: "RRC connection establishment endpoint",
	Long: `An eNB-side endpoint for the LTE RRC connection-establishment handshake
(RRCConnectionRequest, RRCConnectionSetup, RRCConnectionSetupComplete),
plus a UE client to drive it.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Sugar.Error(err)
		logger.Sync()
		os.Exit(1)
	}
}
