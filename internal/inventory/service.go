package inventory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jbweber/homelab/cinv/internal/backend"
	"github.com/jbweber/homelab/cinv/internal/config"
	"github.com/jbweber/homelab/cinv/internal/domain"
	"github.com/jbweber/homelab/cinv/internal/logger"
	"github.com/jbweber/homelab/cinv/internal/property"
	"github.com/jbweber/homelab/cinv/internal/repository"
)

const (
	AreaHost    = "host"
	AreaNetwork = "net-ipv4"
	AreaMac     = "mac"
)

// Options configures a Service
type Options struct {
	Store    property.Store
	Notifier backend.Notifier
	Logger   *logger.Logger
	// LockPath enables an exclusive advisory lock around every mutation
	LockPath string
}

// errUnchanged ends a mutation that had nothing to do, so the backend is not
// notified.
var errUnchanged = errors.New("unchanged")

// Service performs inventory mutations and notifies the backend after
// each one succeeds. Reads go straight to the repositories.
type Service struct {
	Hosts    repository.HostRepository
	Networks repository.NetworkRepository
	Mac      repository.MacRepository

	store    property.Store
	notifier backend.Notifier
	logger   *logger.Logger
	lockPath string
}

// New creates a service over an open store
func New(opts Options) *Service {
	if opts.Notifier == nil {
		opts.Notifier = backend.NopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Service{
		Hosts:    repository.NewHostRepository(opts.Store, opts.Logger.WithArea(AreaHost).Logger),
		Networks: repository.NewNetworkRepository(opts.Store, opts.Logger.WithArea(AreaNetwork).Logger),
		Mac:      repository.NewMacRepository(opts.Store, opts.Logger.WithArea(AreaMac).Logger),
		store:    opts.Store,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		lockPath: opts.LockPath,
	}
}

// Open builds the store selected by cfg together with the backend notifier
func Open(cfg *config.Config, log *logger.Logger) (*Service, error) {
	var (
		store    property.Store
		lockPath string
	)

	switch cfg.Storage {
	case config.StorageSQLite:
		s, err := property.OpenSQLStore(cfg.SQLitePath, log.Logger)
		if err != nil {
			return nil, err
		}
		store = s
		lockPath = cfg.SQLitePath + ".lock"
	case config.StorageFS:
		store = property.NewFSStore(cfg.DBDir)
		lockPath = filepath.Join(cfg.DBDir, ".lock")
	default:
		return nil, fmt.Errorf("%w: invalid storage: %s", config.ErrConfig, cfg.Storage)
	}

	if !cfg.Lock {
		lockPath = ""
	}

	notifier := &backend.ExecNotifier{
		Dir:      cfg.BackendDir,
		DBPath:   cfg.AreaDBPath,
		Required: cfg.BackendRequired,
		Logger:   log.WithOperation("backend").Logger,
	}

	return New(Options{
		Store:    store,
		Notifier: notifier,
		Logger:   log,
		LockPath: lockPath,
	}), nil
}

// Close releases the underlying store
func (s *Service) Close() error {
	return s.store.Close()
}

// mutate runs fn under the optional lock, then notifies the backend.
// The backend is only told about mutations that persisted.
func (s *Service) mutate(ctx context.Context, area, command string, fn func() ([]string, error)) error {
	log := s.logger.WithOperation(area + "." + command)

	if s.lockPath != "" {
		lock, err := acquireLock(s.lockPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.release(); err != nil {
				log.Warn("Failed to release lock", "error", err)
			}
		}()
	}

	args, err := fn()
	if errors.Is(err, errUnchanged) {
		log.Debug("Nothing to change", "args", args)
		return nil
	}
	if err != nil {
		log.Debug("Mutation failed", "error", err)
		return err
	}
	log.Info("Mutation applied", "args", args)

	if err := s.notifier.Notify(ctx, area, command, args...); err != nil {
		return fmt.Errorf("change saved but backend notification failed: %w", err)
	}
	return nil
}

// AddHost creates a host
func (s *Service) AddHost(ctx context.Context, fqdn string, hostType domain.HostType) error {
	return s.mutate(ctx, AreaHost, "add", func() ([]string, error) {
		return []string{fqdn, string(hostType)}, s.Hosts.Add(ctx, fqdn, hostType)
	})
}

// DeleteHost removes a host. With ignoreMissing an absent host is not an
// error and the backend is not called.
func (s *Service) DeleteHost(ctx context.Context, fqdn string, recursive, ignoreMissing bool) error {
	return s.mutate(ctx, AreaHost, "del", func() ([]string, error) {
		if ignoreMissing {
			ok, err := s.Hosts.Exists(ctx, fqdn)
			if err != nil {
				return nil, err
			}
			if !ok {
				return []string{fqdn}, errUnchanged
			}
		}
		return []string{fqdn}, s.Hosts.Delete(ctx, fqdn, recursive)
	})
}

// SetCores stores the core count and returns the normalized value
func (s *Service) SetCores(ctx context.Context, fqdn, cores string) (string, error) {
	var normalized string
	err := s.mutate(ctx, AreaHost, "cores_set", func() ([]string, error) {
		var err error
		normalized, err = s.Hosts.SetCores(ctx, fqdn, cores)
		return []string{fqdn, normalized}, err
	})
	return normalized, err
}

// SetMemory stores main memory and returns the value in bytes
func (s *Service) SetMemory(ctx context.Context, fqdn, memory string) (string, error) {
	var sizeBytes string
	err := s.mutate(ctx, AreaHost, "memory_set", func() ([]string, error) {
		var err error
		sizeBytes, err = s.Hosts.SetMemory(ctx, fqdn, memory)
		return []string{fqdn, sizeBytes}, err
	})
	return sizeBytes, err
}

func (s *Service) SetVMHost(ctx context.Context, fqdn, vmHost string) error {
	return s.mutate(ctx, AreaHost, "vm_host_set", func() ([]string, error) {
		return []string{fqdn, vmHost}, s.Hosts.SetVMHost(ctx, fqdn, vmHost)
	})
}

// AddDisk adds a disk and returns its name and size in bytes
func (s *Service) AddDisk(ctx context.Context, fqdn, name, size string) (string, string, error) {
	var diskName, sizeBytes string
	err := s.mutate(ctx, AreaHost, "disk_add", func() ([]string, error) {
		var err error
		diskName, sizeBytes, err = s.Hosts.AddDisk(ctx, fqdn, name, size)
		return []string{fqdn, diskName, sizeBytes}, err
	})
	return diskName, sizeBytes, err
}

// AddNIC adds a network interface card and returns its name
func (s *Service) AddNIC(ctx context.Context, fqdn, name, mac string) (string, error) {
	var nicName string
	err := s.mutate(ctx, AreaHost, "nic_add", func() ([]string, error) {
		var err error
		nicName, err = s.Hosts.AddNIC(ctx, fqdn, name, mac)
		return []string{fqdn, nicName, mac}, err
	})
	return nicName, err
}

func (s *Service) DeleteNIC(ctx context.Context, fqdn, name string) error {
	return s.mutate(ctx, AreaHost, "nic_del", func() ([]string, error) {
		return []string{fqdn, name}, s.Hosts.DeleteNIC(ctx, fqdn, name)
	})
}

func (s *Service) AddTag(ctx context.Context, fqdn, name, value string, force bool) error {
	return s.mutate(ctx, AreaHost, "tag_add", func() ([]string, error) {
		return []string{fqdn, name, value}, s.Hosts.AddTag(ctx, fqdn, name, value, force)
	})
}

func (s *Service) DeleteTag(ctx context.Context, fqdn, name string, force bool) error {
	return s.mutate(ctx, AreaHost, "tag_del", func() ([]string, error) {
		return []string{fqdn, name}, s.Hosts.DeleteTag(ctx, fqdn, name, force)
	})
}

// ApplyHosts asks the backend to apply the given hosts. Exactly one of all,
// hostType or fqdns selects them; all and hostType may be combined.
func (s *Service) ApplyHosts(ctx context.Context, all bool, hostType domain.HostType, fqdns []string) error {
	if !all && hostType == "" && len(fqdns) == 0 {
		return fmt.Errorf("%w: required to pass either FQDNs, type or --all", repository.ErrInvalidEntity)
	}
	if hostType != "" && len(fqdns) > 0 {
		return fmt.Errorf("%w: cannot combine FQDN list and type", repository.ErrInvalidEntity)
	}

	hosts := fqdns
	if all || hostType != "" {
		var err error
		hosts, err = s.Hosts.List(ctx, repository.HostFilter{Type: hostType})
		if err != nil {
			return err
		}
	}
	return s.apply(ctx, AreaHost, hosts)
}

// AddNetwork creates a network
func (s *Service) AddNetwork(ctx context.Context, network string, mask int) error {
	return s.mutate(ctx, AreaNetwork, "add", func() ([]string, error) {
		return []string{network, fmt.Sprint(mask)}, s.Networks.Add(ctx, network, mask)
	})
}

func (s *Service) DeleteNetwork(ctx context.Context, network string, recursive bool) error {
	return s.mutate(ctx, AreaNetwork, "del", func() ([]string, error) {
		return []string{network}, s.Networks.Delete(ctx, network, recursive)
	})
}

func (s *Service) SetBootServer(ctx context.Context, network, server string) error {
	return s.mutate(ctx, AreaNetwork, "bootserver_set", func() ([]string, error) {
		return []string{network, server}, s.Networks.SetBootServer(ctx, network, server)
	})
}

func (s *Service) SetBootFilename(ctx context.Context, network, filename string) error {
	return s.mutate(ctx, AreaNetwork, "bootfilename_set", func() ([]string, error) {
		return []string{network, filename}, s.Networks.SetBootFilename(ctx, network, filename)
	})
}

func (s *Service) SetRouter(ctx context.Context, network, router string) error {
	return s.mutate(ctx, AreaNetwork, "router_set", func() ([]string, error) {
		return []string{network, router}, s.Networks.SetRouter(ctx, network, router)
	})
}

// AddNetworkHost attaches a host, allocating an address when ipv4 is empty
func (s *Service) AddNetworkHost(ctx context.Context, network, fqdn, mac, ipv4 string) (domain.NetworkHost, error) {
	var h domain.NetworkHost
	err := s.mutate(ctx, AreaNetwork, "host_add", func() ([]string, error) {
		var err error
		h, err = s.Networks.AddHost(ctx, network, fqdn, mac, ipv4)
		return []string{network, fqdn, h.MACAddress, h.IPv4Address}, err
	})
	return h, err
}

// DeleteNetworkHost detaches a host and returns the freed address
func (s *Service) DeleteNetworkHost(ctx context.Context, network, fqdn string) (string, error) {
	var freed string
	err := s.mutate(ctx, AreaNetwork, "host_del", func() ([]string, error) {
		var err error
		freed, err = s.Networks.DeleteHost(ctx, network, fqdn)
		return []string{network, fqdn}, err
	})
	return freed, err
}

// ApplyNetworks asks the backend to apply the given networks, or all of them
func (s *Service) ApplyNetworks(ctx context.Context, all bool, networks []string) error {
	if !all && len(networks) == 0 {
		return fmt.Errorf("%w: required to pass either networks or --all", repository.ErrInvalidEntity)
	}
	if all {
		var err error
		networks, err = s.Networks.List(ctx)
		if err != nil {
			return err
		}
	}
	return s.apply(ctx, AreaNetwork, networks)
}

func (s *Service) apply(ctx context.Context, area string, keys []string) error {
	s.logger.WithOperation(area+".apply").Info("Applying", "count", len(keys))
	if err := s.notifier.Notify(ctx, area, "apply", keys...); err != nil {
		return fmt.Errorf("apply %s: %w", area, err)
	}
	return nil
}

func (s *Service) SetMacPrefix(ctx context.Context, prefix string) error {
	return s.mutate(ctx, AreaMac, "prefix_set", func() ([]string, error) {
		return []string{prefix}, s.Mac.SetPrefix(ctx, prefix)
	})
}

// GenerateMac issues the next MAC address of the pool
func (s *Service) GenerateMac(ctx context.Context) (string, error) {
	var mac string
	err := s.mutate(ctx, AreaMac, "generate", func() ([]string, error) {
		var err error
		mac, err = s.Mac.Next(ctx)
		return []string{mac}, err
	})
	return mac, err
}

// FreeMac returns an address to the pool
func (s *Service) FreeMac(ctx context.Context, mac string) error {
	return s.mutate(ctx, AreaMac, "free", func() ([]string, error) {
		return []string{mac}, s.Mac.Free(ctx, mac)
	})
}

// Snapshot reads the whole inventory with hosts and networks sorted by key
func (s *Service) Snapshot(ctx context.Context) (domain.Inventory, error) {
	inv := domain.Inventory{Hosts: []domain.Host{}, Networks: []domain.Network{}}

	fqdns, err := s.Hosts.List(ctx, repository.HostFilter{})
	if err != nil {
		return domain.Inventory{}, err
	}
	for _, fqdn := range fqdns {
		h, err := s.Hosts.Get(ctx, fqdn)
		if err != nil {
			return domain.Inventory{}, err
		}
		inv.Hosts = append(inv.Hosts, h)
	}

	networks, err := s.Networks.List(ctx)
	if err != nil {
		return domain.Inventory{}, err
	}
	for _, network := range networks {
		n, err := s.Networks.Get(ctx, network)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return domain.Inventory{}, err
		}
		inv.Networks = append(inv.Networks, n)
	}

	inv.Mac, err = s.Mac.Get(ctx)
	if err != nil {
		return domain.Inventory{}, err
	}
	return inv, nil
}
