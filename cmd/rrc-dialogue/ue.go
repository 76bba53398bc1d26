package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"tarun-kavipurapu/rrc-dialogue/pkg/config"
	"tarun-kavipurapu/rrc-dialogue/pkg/discovery"
	"tarun-kavipurapu/rrc-dialogue/pkg/logger"
	"tarun-kavipurapu/rrc-dialogue/pkg/protocol"
	"tarun-kavipurapu/rrc-dialogue/ue"

	"github.com/spf13/cobra"
)

var (
	enbAddr      string
	ueTransport  string
	identityHex  string
	noIdentity   bool
	cause        int64
	plmn         int64
	nasHex       string
	count        int
	parallel     int
	discover     bool
	ueTimeout    time.Duration
	discoverWait time.Duration
)

var ueCmd = &cobra.Command{
	Use:   "ue",
	Short: "Attach to an eNB endpoint as a UE",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		cfg := ue.DefaultConfig()
		cfg.Transport = strings.ToLower(ueTransport)
		cfg.Options.ReadTimeout = ueTimeout
		cfg.Options.WriteTimeout = ueTimeout
		cfg.Cause = protocol.EstablishmentCause(cause)
		cfg.SelectedPLMNIdentity = plmn
		cfg.OmitIdentity = noIdentity
		if identityHex != "" {
			raw, err := hex.DecodeString(identityHex)
			if err != nil {
				return fmt.Errorf("invalid --identity: %w", err)
			}
			cfg.Identity = &protocol.UEIdentity{Kind: protocol.IdentityRandomValue, RandomValue: raw}
		}
		if nasHex != "" {
			raw, err := hex.DecodeString(nasHex)
			if err != nil {
				return fmt.Errorf("invalid --nas: %w", err)
			}
			cfg.DedicatedInfoNAS = raw
		}

		addr := enbAddr
		if discover {
			found, err := discoverENB(ctx)
			if err != nil {
				return err
			}
			addr = found.Addr()
			if t := found.Meta[discovery.MetaTransport]; t != "" && !cmd.Flags().Changed("transport") {
				cfg.Transport = t
			}
		}

		u, err := ue.New(cfg)
		if err != nil {
			return err
		}
		defer u.Close()

		if count <= 1 {
			setup, err := u.Attach(ctx, addr)
			if err != nil {
				return err
			}
			fmt.Printf("RRCConnectionSetup: rrc-TransactionIdentifier=%d lateNonCriticalExtension=%q\n",
				setup.TransactionID, setup.LateNonCriticalExtension)
			return nil
		}

		tracker := ue.NewBatchTracker(addr, count)
		renderer := ue.NewProgressRenderer(tracker, os.Stdout, ue.IsTerminalSupported())
		go renderer.Start()
		u.AttachBatch(ctx, addr, count, parallel, tracker)
		renderer.StopAndWait()
		return tracker.Err()
	},
}

func discoverENB(ctx context.Context) (*discovery.ServiceInfo, error) {
	resolver, err := discovery.NewResolver()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, discoverWait)
	defer cancel()

	logger.Sugar.Infof("[UE] browsing for eNB endpoints: service=%s timeout=%s", discovery.ServiceType, discoverWait)
	info, err := resolver.Lookup(ctx)
	if err != nil {
		return nil, err
	}
	return info, nil
}

func init() {
	rootCmd.AddCommand(ueCmd)
	f := ueCmd.Flags()
	f.StringVarP(&enbAddr, "addr", "a", "127.0.0.1:8080", "eNB endpoint address")
	f.StringVarP(&ueTransport, "transport", "t", config.TransportTCP, "Transport: tcp or quic")
	f.StringVar(&identityHex, "identity", "", "ue-Identity randomValue as hex (random if empty)")
	f.BoolVar(&noIdentity, "no-identity", false, "Send the request without ue-Identity")
	f.Int64Var(&cause, "cause", int64(protocol.CauseMOSignalling), "establishmentCause value")
	f.Int64Var(&plmn, "plmn", protocol.MinPLMNIdentity, "selectedPLMN-Identity for the setup complete")
	f.StringVar(&nasHex, "nas", "", "dedicatedInfoNAS as hex")
	f.IntVarP(&count, "count", "n", 1, "Number of attaches")
	f.IntVarP(&parallel, "parallel", "p", 4, "Attaches in flight at once")
	f.BoolVar(&discover, "discover", false, "Find the eNB over mDNS instead of --addr")
	f.DurationVar(&discoverWait, "discover-timeout", 3*time.Second, "How long to browse for an eNB")
	f.DurationVar(&ueTimeout, "timeout", 5*time.Second, "Per-message read/write timeout")
}
