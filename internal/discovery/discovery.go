// Package discovery advertises relay servers on the local network over mDNS
// and browses for them.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service relays announce.
const ServiceType = "_onlinecanvas._tcp"

const DefaultBrowseTimeout = 2 * time.Second

var ErrInvalidPort = errors.New("advertised port must be positive")

// AdvertiseConfig describes the relay being announced.
type AdvertiseConfig struct {
	// Instance names this relay; the hostname when empty.
	Instance string
	Port     int
	// HostName must be fully qualified when set, e.g. "relay.local.".
	HostName string
	// IPs are looked up from HostName when empty.
	IPs    []net.IP
	Info   []string
	Logger *slog.Logger
}

// Advertiser announces one relay until closed.
type Advertiser struct {
	server *mdns.Server
	logger *slog.Logger
}

// NewService builds the mDNS zone for cfg.
func NewService(cfg AdvertiseConfig) (*mdns.MDNSService, error) {
	if cfg.Port <= 0 {
		return nil, ErrInvalidPort
	}

	instance := cfg.Instance
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("hostname: %w", err)
		}

		instance = host
	}

	info := cfg.Info
	if len(info) == 0 {
		info = []string{"online-canvas relay"}
	}

	service, err := mdns.NewMDNSService(instance, ServiceType, "", cfg.HostName, cfg.Port, cfg.IPs, info)
	if err != nil {
		return nil, fmt.Errorf("create mdns service: %w", err)
	}

	return service, nil
}

// Advertise starts answering mDNS queries for the relay.
func Advertise(cfg AdvertiseConfig) (*Advertiser, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	service, err := NewService(cfg)
	if err != nil {
		return nil, err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("start mdns server: %w", err)
	}

	logger.Info("advertising relay", "instance", service.Instance, "port", service.Port)

	return &Advertiser{server: server, logger: logger}, nil
}

// Close stops the announcement.
func (a *Advertiser) Close() error {
	a.logger.Debug("mdns advertisement stopped")

	return a.server.Shutdown()
}

// Relay is one relay server found on the network.
type Relay struct {
	Instance string
	Host     string
	Addr     string
	Info     []string
}

// WebSocketURL returns the relay's websocket endpoint.
func (r Relay) WebSocketURL() string {
	return "ws://" + r.Addr + "/ws"
}

// BaseURL returns the relay's HTTP root.
func (r Relay) BaseURL() string {
	return "http://" + r.Addr
}

// FromEntry converts an mDNS answer. Entries without an address or port are
// rejected.
func FromEntry(e *mdns.ServiceEntry) (Relay, bool) {
	if e == nil || e.Port == 0 {
		return Relay{}, false
	}

	ip := e.AddrV4
	if ip == nil {
		ip = e.AddrV6
	}

	if ip == nil {
		return Relay{}, false
	}

	instance := strings.TrimSuffix(e.Name, "."+ServiceType+".local.")

	return Relay{
		Instance: instance,
		Host:     e.Host,
		Addr:     net.JoinHostPort(ip.String(), strconv.Itoa(e.Port)),
		Info:     e.InfoFields,
	}, true
}

// BrowseConfig controls a Browse call.
type BrowseConfig struct {
	Timeout     time.Duration
	DisableIPv6 bool
	Logger      *slog.Logger
}

// Browse queries the network for relays until the timeout or ctx ends.
// Results are deduplicated by address and sorted.
func Browse(ctx context.Context, cfg BrowseConfig) ([]Relay, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBrowseTimeout
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	found := make(map[string]Relay)
	done := make(chan struct{})

	go func() {
		defer close(done)

		for e := range entries {
			relay, ok := FromEntry(e)
			if !ok {
				cfg.Logger.Debug("skipping incomplete mdns entry", "name", e.Name)

				continue
			}

			found[relay.Addr] = relay
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = cfg.Timeout
	params.DisableIPv6 = cfg.DisableIPv6

	err := mdns.QueryContext(ctx, params)

	close(entries)
	<-done

	if err != nil {
		return nil, fmt.Errorf("mdns query: %w", err)
	}

	relays := make([]Relay, 0, len(found))
	for _, r := range found {
		relays = append(relays, r)
	}

	slices.SortFunc(relays, func(a, b Relay) int { return strings.Compare(a.Addr, b.Addr) })

	return relays, nil
}
