package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tarun-kavipurapu/rrc-dialogue/pkg/config"
	"tarun-kavipurapu/rrc-dialogue/pkg/logger"
	"tarun-kavipurapu/rrc-dialogue/pkg/monitor"
	rrcserver "tarun-kavipurapu/rrc-dialogue/rrc-server"

	"github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	configPath  string
	interactive bool
	serveFlags  = config.Default()
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the eNB endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(configPath, cmd.Flags())
		if err != nil {
			return err
		}

		server, err := rrcserver.NewServer(cfg)
		if err != nil {
			return err
		}

		if !interactive {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				if err := server.Stop(); err != nil {
					logger.Sugar.Errorf("[RRCServer] stop: %v", err)
				}
			}()
			return server.Start()
		}

		if err := server.Listen(); err != nil {
			return err
		}
		fmt.Println("RRC eNB Endpoint Interactive Shell")
		fmt.Println("Type 'help' for commands.")

		prompt.New(
			func(in string) { serverExecutor(in, server) },
			serverCompleter,
			prompt.OptionPrefix("enb> "),
			prompt.OptionTitle("RRC eNB Endpoint"),
		).Run()
		return nil
	},
}

// resolveConfig layers defaults, the optional TOML file, then any flag the
// user actually set.
func resolveConfig(path string, flags *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "addr":
			cfg.ListenAddr = serveFlags.ListenAddr
		case "transport":
			cfg.Transport = strings.ToLower(serveFlags.Transport)
		case "max-message-size":
			cfg.MaxMessageSize = serveFlags.MaxMessageSize
		case "read-timeout":
			cfg.ReadTimeout = serveFlags.ReadTimeout
		case "write-timeout":
			cfg.WriteTimeout = serveFlags.WriteTimeout
		case "once":
			cfg.Once = serveFlags.Once
		case "advertise":
			cfg.Advertise = serveFlags.Advertise
		case "name":
			cfg.InstanceName = serveFlags.InstanceName
		case "metrics":
			cfg.MetricsAddr = serveFlags.MetricsAddr
		}
	})
	return cfg, cfg.Validate()
}

func serverExecutor(in string, server *rrcserver.Server) {
	in = strings.TrimSpace(in)
	blocks := strings.Fields(in)
	if len(blocks) == 0 {
		return
	}

	switch blocks[0] {
	case "exit", "quit":
		fmt.Println("Stopping server...")
		if err := server.Stop(); err != nil {
			logger.Sugar.Errorf("[RRCServer] stop: %v", err)
		}
		logger.Sync()
		os.Exit(0)
	case "status":
		fmt.Println(server.GetStatus())
	case "stats":
		fmt.Println(monitor.Global.Snapshot())
	case "list":
		if len(blocks) > 1 && blocks[1] == "sessions" {
			sessions := server.GetSessionsList()
			if len(sessions) == 0 {
				fmt.Println("No handshakes in progress.")
			} else {
				fmt.Println("Handshakes in progress:")
				for _, s := range sessions {
					fmt.Println("- " + s)
				}
			}
		} else {
			fmt.Println("Usage: list sessions")
		}
	case "help":
		fmt.Println("Available commands:")
		fmt.Println("  status         - Show endpoint status")
		fmt.Println("  list sessions  - List handshakes in progress")
		fmt.Println("  stats          - Show handshake counters")
		fmt.Println("  exit           - Stop endpoint and exit")
	default:
		fmt.Println("Unknown command: " + blocks[0])
	}
}

func serverCompleter(d prompt.Document) []prompt.Suggest {
	s := []prompt.Suggest{
		{Text: "status", Description: "Show endpoint status and stats"},
		{Text: "list sessions", Description: "List handshakes in progress"},
		{Text: "stats", Description: "Show handshake counters"},
		{Text: "exit", Description: "Exit the endpoint"},
		{Text: "help", Description: "Show help"},
	}
	return prompt.FilterHasPrefix(s, d.GetWordBeforeCursor(), true)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "TOML config file")
	f.StringVarP(&serveFlags.ListenAddr, "addr", "a", serveFlags.ListenAddr, "Address to listen on")
	f.StringVarP(&serveFlags.Transport, "transport", "t", serveFlags.Transport, "Transport: tcp or quic")
	f.Uint32Var(&serveFlags.MaxMessageSize, "max-message-size", serveFlags.MaxMessageSize, "Largest accepted message in bytes")
	f.DurationVar(&serveFlags.ReadTimeout, "read-timeout", 0, "Per-message read timeout (0 blocks)")
	f.DurationVar(&serveFlags.WriteTimeout, "write-timeout", 0, "Per-message write timeout (0 blocks)")
	f.BoolVar(&serveFlags.Once, "once", false, "Stop after the first handshake")
	f.BoolVar(&serveFlags.Advertise, "advertise", false, "Advertise the endpoint over mDNS")
	f.StringVar(&serveFlags.InstanceName, "name", serveFlags.InstanceName, "mDNS instance name")
	f.StringVar(&serveFlags.MetricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
	f.BoolVarP(&interactive, "interactive", "i", false, "Start in interactive mode")
}
