package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"

	"tarun-kavipurapu/rrc-dialogue/pkg/logger"
)

const (
	// ServiceType is the mDNS service type eNB endpoints register under.
	ServiceType = "_rrc-enb._tcp"
	// Domain is the local domain for mDNS
	Domain = "local."

	MetaTransport = "transport"
	MetaVersion   = "version"
)

var ErrNotFound = errors.New("discovery: no eNB endpoint found")

// ServiceInfo contains information about a discovered endpoint
type ServiceInfo struct {
	InstanceName string
	HostName     string
	Port         int
	IPs          []string
	Meta         map[string]string
}

// Addr returns host:port for the first discovered IPv4 address.
func (s *ServiceInfo) Addr() string {
	if len(s.IPs) == 0 {
		return ""
	}
	return net.JoinHostPort(s.IPs[0], strconv.Itoa(s.Port))
}

// Advertiser handles service broadcasting
type Advertiser struct {
	server *zeroconf.Server
}

// Resolver handles service discovery
type Resolver struct {
	resolver *zeroconf.Resolver
}

func NewAdvertiser() *Advertiser {
	return &Advertiser{}
}

// Start begins broadcasting the endpoint. An empty instanceName falls back
// to one derived from the hostname.
func (a *Advertiser) Start(instanceName string, port int, meta map[string]string) error {
	if instanceName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			instanceName = "rrc-enb"
		} else {
			instanceName = fmt.Sprintf("rrc-enb-%s", hostname)
		}
	}

	server, err := zeroconf.Register(instanceName, ServiceType, Domain, port, txtRecords(meta), nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}

	a.server = server
	return nil
}

// txtRecords renders meta as sorted key=value records.
func txtRecords(meta map[string]string) []string {
	records := make([]string, 0, len(meta))
	for k, v := range meta {
		records = append(records, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(records)
	return records
}

func parseTXT(records []string) map[string]string {
	meta := make(map[string]string, len(records))
	for _, record := range records {
		parts := strings.SplitN(record, "=", 2)
		if len(parts) == 2 {
			meta[parts[0]] = parts[1]
		}
	}
	return meta
}

// Stop stops broadcasting the service
func (a *Advertiser) Stop() {
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

func NewResolver() (*Resolver, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	return &Resolver{resolver: resolver}, nil
}

// Browse scans for endpoints until the context is canceled.
func (r *Resolver) Browse(ctx context.Context) (<-chan *ServiceInfo, error) {
	entries := make(chan *zeroconf.ServiceEntry)
	results := make(chan *ServiceInfo, 10)

	if err := r.resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse services: %w", err)
	}

	go func() {
		defer close(results)

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}

				info := &ServiceInfo{
					InstanceName: entry.Instance,
					HostName:     entry.HostName,
					Port:         entry.Port,
					IPs:          make([]string, 0, len(entry.AddrIPv4)),
					Meta:         parseTXT(entry.Text),
				}
				for _, ip := range entry.AddrIPv4 {
					info.IPs = append(info.IPs, ip.String())
				}

				if len(info.IPs) > 0 {
					logger.Sugar.Infof("[Discovery] discovered eNB: instance=%s ips=%v port=%d transport=%s",
						info.InstanceName, info.IPs, info.Port, info.Meta[MetaTransport])
					select {
					case results <- info:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return results, nil
}

// Lookup returns the first endpoint that answers before ctx expires.
func (r *Resolver) Lookup(ctx context.Context) (*ServiceInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := r.Browse(ctx)
	if err != nil {
		return nil, err
	}
	info, ok := <-ch
	if !ok {
		return nil, ErrNotFound
	}
	return info, nil
}
