package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jbweber/homelab/cinv/internal/domain"
	"github.com/jbweber/homelab/cinv/internal/property"
)

const (
	networkArea = "net-ipv4"

	networkFieldMask         = "mask"
	networkFieldLast         = "last"
	networkFieldAddressFree  = "address_free"
	networkFieldBootServer   = "bootserver"
	networkFieldBootFilename = "bootfilename"
	networkFieldRouter       = "router"
	networkHostDir           = "host"

	networkHostFieldMAC  = "mac_address"
	networkHostFieldIPv4 = "ipv4_address"
)

// NetworkRepository defines domain-specific operations for IPv4 networks
type NetworkRepository interface {
	Add(ctx context.Context, network string, mask int) error
	Exists(ctx context.Context, network string) (bool, error)
	Get(ctx context.Context, network string) (domain.Network, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, network string, recursive bool) error

	SetBootServer(ctx context.Context, network, server string) error
	SetBootFilename(ctx context.Context, network, filename string) error
	SetRouter(ctx context.Context, network, router string) error

	// NextAddress allocates the next free address of the network
	NextAddress(ctx context.Context, network string) (string, error)

	AddHost(ctx context.Context, network, fqdn, mac, ipv4 string) (domain.NetworkHost, error)
	// DeleteHost detaches a host and returns its address to the free list
	DeleteHost(ctx context.Context, network, fqdn string) (string, error)
	Host(ctx context.Context, network, fqdn string) (domain.NetworkHost, error)
	Hosts(ctx context.Context, network string) ([]string, error)
}

// networkRepositoryImpl implements NetworkRepository
type networkRepositoryImpl struct {
	store  property.Store
	logger *slog.Logger
}

// NewNetworkRepository creates a new network repository
func NewNetworkRepository(store property.Store, logger *slog.Logger) NetworkRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &networkRepositoryImpl{
		store:  store,
		logger: logger,
	}
}

func networkPath(network string) property.Path {
	return property.Path{networkArea, network}
}

func networkHostPath(network, fqdn string) property.Path {
	return property.Path{networkArea, network, networkHostDir, fqdn}
}

func (r *networkRepositoryImpl) scalar(network, field string) property.Scalar {
	return property.Scalar{Store: r.store, Entity: networkPath(network), Field: field}
}

func (r *networkRepositoryImpl) freeList(network string) property.List {
	return property.List{Store: r.store, Entity: networkPath(network), Field: networkFieldAddressFree}
}

// Add creates a network. The address must be the base address under mask.
func (r *networkRepositoryImpl) Add(ctx context.Context, network string, mask int) error {
	if err := domain.ValidateNetworkAddress(network, mask); err != nil {
		return invalid(err)
	}

	if err := r.store.Create(ctx, networkPath(network)); err != nil {
		if errors.Is(err, property.ErrExists) {
			return fmt.Errorf("network already exists: %s: %w", network, ErrDuplicate)
		}
		return fmt.Errorf("failed to create network: %w", err)
	}
	if err := r.store.Ensure(ctx, networkPath(network).Child(networkHostDir)); err != nil {
		return fmt.Errorf("failed to create network host directory: %w", err)
	}
	if err := r.scalar(network, networkFieldMask).Set(ctx, strconv.Itoa(mask)); err != nil {
		return fmt.Errorf("failed to set mask: %w", err)
	}
	return nil
}

// Exists reports whether the network is present. Malformed addresses are
// never present.
func (r *networkRepositoryImpl) Exists(ctx context.Context, network string) (bool, error) {
	if domain.ValidateIPv4(network) != nil {
		return false, nil
	}
	return r.store.Exists(ctx, networkPath(network))
}

func (r *networkRepositoryImpl) mustExist(ctx context.Context, network string) error {
	ok, err := r.Exists(ctx, network)
	if err != nil {
		return fmt.Errorf("failed to check network: %w", err)
	}
	if !ok {
		return fmt.Errorf("network does not exist: %s: %w", network, ErrNotFound)
	}
	return nil
}

func (r *networkRepositoryImpl) mask(ctx context.Context, network string) (int, error) {
	v, err := r.scalar(network, networkFieldMask).Value(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read mask: %w", err)
	}
	mask, err := domain.ParseMask(v)
	if err != nil {
		return 0, fmt.Errorf("network %s has a corrupt mask: %w", network, invalid(err))
	}
	return mask, nil
}

// Get loads a network together with its attached hosts
func (r *networkRepositoryImpl) Get(ctx context.Context, network string) (domain.Network, error) {
	if err := r.mustExist(ctx, network); err != nil {
		return domain.Network{}, err
	}

	mask, err := r.mask(ctx, network)
	if err != nil {
		return domain.Network{}, err
	}
	n := domain.Network{Network: network, Mask: mask}

	scalars := []struct {
		field string
		dst   *string
	}{
		{networkFieldLast, &n.Last},
		{networkFieldBootServer, &n.BootServer},
		{networkFieldBootFilename, &n.BootFilename},
		{networkFieldRouter, &n.Router},
	}
	for _, s := range scalars {
		v, err := r.scalar(network, s.field).Value(ctx)
		if err != nil {
			return domain.Network{}, fmt.Errorf("failed to read %s: %w", s.field, err)
		}
		*s.dst = v
	}

	n.AddressFree, err = r.freeList(network).Items(ctx)
	if err != nil {
		return domain.Network{}, fmt.Errorf("failed to read free addresses: %w", err)
	}

	n.Hosts, err = r.attached(ctx, network)
	if err != nil {
		return domain.Network{}, err
	}
	return n, nil
}

// List returns all network addresses, sorted
func (r *networkRepositoryImpl) List(ctx context.Context) ([]string, error) {
	networks, err := r.store.Children(ctx, property.Path{networkArea})
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}
	return networks, nil
}

// Delete removes a network. Networks with attached hosts are only removed
// when recursive is set.
func (r *networkRepositoryImpl) Delete(ctx context.Context, network string, recursive bool) error {
	if err := r.mustExist(ctx, network); err != nil {
		return err
	}
	if !recursive {
		hosts, err := r.hostNames(ctx, network)
		if err != nil {
			return err
		}
		if len(hosts) > 0 {
			return fmt.Errorf("cannot delete, network %s has %d hosts: %w", network, len(hosts), ErrHasChildren)
		}
	}
	if err := r.store.Remove(ctx, networkPath(network)); err != nil {
		return fmt.Errorf("failed to delete network: %w", err)
	}
	return nil
}

func (r *networkRepositoryImpl) setScalar(ctx context.Context, network, field, value string) error {
	if err := r.mustExist(ctx, network); err != nil {
		return err
	}
	if err := r.scalar(network, field).Set(ctx, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", field, err)
	}
	return nil
}

func (r *networkRepositoryImpl) SetBootServer(ctx context.Context, network, server string) error {
	return r.setScalar(ctx, network, networkFieldBootServer, server)
}

func (r *networkRepositoryImpl) SetBootFilename(ctx context.Context, network, filename string) error {
	return r.setScalar(ctx, network, networkFieldBootFilename, filename)
}

// SetRouter stores the default router, which must be an IPv4 address
func (r *networkRepositoryImpl) SetRouter(ctx context.Context, network, router string) error {
	if err := domain.ValidateIPv4(router); err != nil {
		return invalid(err)
	}
	return r.setScalar(ctx, network, networkFieldRouter, router)
}

// NextAddress hands out the most recently freed address, or else the address
// after last. The broadcast address and addresses outside the network are
// never returned, and neither is an address held by an attached host.
func (r *networkRepositoryImpl) NextAddress(ctx context.Context, network string) (string, error) {
	if err := r.mustExist(ctx, network); err != nil {
		return "", err
	}
	mask, err := r.mask(ctx, network)
	if err != nil {
		return "", err
	}
	hosts, err := r.attached(ctx, network)
	if err != nil {
		return "", err
	}
	return r.nextAddress(ctx, network, mask, hosts)
}

func (r *networkRepositoryImpl) nextAddress(ctx context.Context, network string, mask int, hosts []domain.NetworkHost) (string, error) {
	used := make(map[string]string, len(hosts))
	for _, h := range hosts {
		used[h.IPv4Address] = h.FQDN
	}
	broadcast := domain.Broadcast(network, mask)
	logger := r.logger.With("network", network)

	free := r.freeList(network)
	for {
		addr, ok, err := free.Pop(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to pop free address: %w", err)
		}
		if !ok {
			break
		}
		if usable(addr, network, mask, broadcast) && used[addr] == "" {
			logger.Debug("Reusing free address", "address", addr)
			return addr, nil
		}
		logger.Debug("Dropping unusable free address", "address", addr)
	}

	last := r.scalar(network, networkFieldLast)
	current, err := last.Value(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read last address: %w", err)
	}
	if current == "" || domain.ValidateIPv4(current) != nil {
		current = network
	}

	for {
		next := domain.IntToIP(domain.IPToInt(current) + 1)
		if next == broadcast {
			return "", fmt.Errorf("next address is broadcast, cannot get new one in %s/%d: %w", network, mask, ErrExhausted)
		}
		if next == network || !domain.InNetwork(next, network, mask) {
			return "", fmt.Errorf("no address left in %s/%d: %w", network, mask, ErrExhausted)
		}
		if err := last.Set(ctx, next); err != nil {
			return "", fmt.Errorf("failed to store last address: %w", err)
		}
		if holder := used[next]; holder != "" {
			logger.Debug("Skipping address in use", "address", next, "host", holder)
			current = next
			continue
		}
		logger.Debug("Next address", "address", next)
		return next, nil
	}
}

func usable(addr, network string, mask int, broadcast string) bool {
	return domain.ValidateIPv4(addr) == nil &&
		domain.InNetwork(addr, network, mask) &&
		addr != network && addr != broadcast
}

// AddHost attaches a host to the network. All checks run before anything is
// written; without an explicit address one is allocated.
func (r *networkRepositoryImpl) AddHost(ctx context.Context, network, fqdn, mac, ipv4 string) (domain.NetworkHost, error) {
	if err := r.mustExist(ctx, network); err != nil {
		return domain.NetworkHost{}, err
	}
	if err := domain.ValidateMAC(mac); err != nil {
		return domain.NetworkHost{}, invalid(err)
	}
	if fqdn == "" {
		return domain.NetworkHost{}, fmt.Errorf("%w: empty fqdn", ErrInvalidEntity)
	}
	p := networkHostPath(network, fqdn)
	if err := p.Validate(); err != nil {
		return domain.NetworkHost{}, fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}

	hosts, err := r.attached(ctx, network)
	if err != nil {
		return domain.NetworkHost{}, err
	}
	for _, h := range hosts {
		if h.FQDN == fqdn {
			return domain.NetworkHost{}, fmt.Errorf("host %s already in network %s: %w", fqdn, network, ErrDuplicate)
		}
	}
	for _, h := range hosts {
		if sameMAC(h.MACAddress, mac) {
			return domain.NetworkHost{}, fmt.Errorf("mac %s already used in network %s by %s: %w", mac, network, h.FQDN, ErrConflict)
		}
	}

	mask, err := r.mask(ctx, network)
	if err != nil {
		return domain.NetworkHost{}, err
	}

	if ipv4 != "" {
		if err := domain.ValidateIPv4(ipv4); err != nil {
			return domain.NetworkHost{}, invalid(err)
		}
		if !usable(ipv4, network, mask, domain.Broadcast(network, mask)) {
			return domain.NetworkHost{}, fmt.Errorf("%w: requested IPv4 address not usable in network %s/%d: %s", ErrInvalidEntity, network, mask, ipv4)
		}
		for _, h := range hosts {
			if h.IPv4Address == ipv4 {
				return domain.NetworkHost{}, fmt.Errorf("IPv4 address %s already used in network %s by %s: %w", ipv4, network, h.FQDN, ErrConflict)
			}
		}
	} else {
		ipv4, err = r.nextAddress(ctx, network, mask, hosts)
		if err != nil {
			return domain.NetworkHost{}, err
		}
	}

	if err := r.store.Create(ctx, p); err != nil {
		return domain.NetworkHost{}, fmt.Errorf("failed to create network host: %w", err)
	}
	if err := r.store.SetScalar(ctx, p, networkHostFieldMAC, mac); err != nil {
		return domain.NetworkHost{}, fmt.Errorf("failed to set mac address: %w", err)
	}
	if err := r.store.SetScalar(ctx, p, networkHostFieldIPv4, ipv4); err != nil {
		return domain.NetworkHost{}, fmt.Errorf("failed to set ipv4 address: %w", err)
	}

	return domain.NetworkHost{FQDN: fqdn, MACAddress: mac, IPv4Address: ipv4}, nil
}

func sameMAC(a, b string) bool {
	norm := func(s string) string { return strings.ReplaceAll(s, "-", ":") }
	return strings.EqualFold(norm(a), norm(b))
}

// DeleteHost detaches a host and pushes its address onto the free list
func (r *networkRepositoryImpl) DeleteHost(ctx context.Context, network, fqdn string) (string, error) {
	h, err := r.Host(ctx, network, fqdn)
	if err != nil {
		return "", err
	}

	r.logger.Debug("Removing host", "network", network, "host", fqdn, "address", h.IPv4Address)
	if h.IPv4Address != "" {
		if err := r.freeList(network).Push(ctx, h.IPv4Address); err != nil {
			return "", fmt.Errorf("failed to free address: %w", err)
		}
	}
	if err := r.store.Remove(ctx, networkHostPath(network, fqdn)); err != nil {
		return "", fmt.Errorf("failed to delete network host: %w", err)
	}
	return h.IPv4Address, nil
}

// Host returns one attached host
func (r *networkRepositoryImpl) Host(ctx context.Context, network, fqdn string) (domain.NetworkHost, error) {
	if err := r.mustExist(ctx, network); err != nil {
		return domain.NetworkHost{}, err
	}
	if fqdn == "" {
		return domain.NetworkHost{}, fmt.Errorf("host does not exist in network %s: %w", network, ErrNotFound)
	}
	p := networkHostPath(network, fqdn)
	ok, err := r.store.Exists(ctx, p)
	if err != nil && !errors.Is(err, property.ErrInvalidPath) {
		return domain.NetworkHost{}, fmt.Errorf("failed to check network host: %w", err)
	}
	if !ok {
		return domain.NetworkHost{}, fmt.Errorf("host %s does not exist in network %s: %w", fqdn, network, ErrNotFound)
	}
	return r.loadHost(ctx, network, fqdn)
}

func (r *networkRepositoryImpl) loadHost(ctx context.Context, network, fqdn string) (domain.NetworkHost, error) {
	p := networkHostPath(network, fqdn)
	mac, _, err := r.store.GetScalar(ctx, p, networkHostFieldMAC)
	if err != nil {
		return domain.NetworkHost{}, fmt.Errorf("failed to read mac address of %s: %w", fqdn, err)
	}
	ipv4, _, err := r.store.GetScalar(ctx, p, networkHostFieldIPv4)
	if err != nil {
		return domain.NetworkHost{}, fmt.Errorf("failed to read ipv4 address of %s: %w", fqdn, err)
	}
	return domain.NetworkHost{FQDN: fqdn, MACAddress: mac, IPv4Address: ipv4}, nil
}

// Hosts returns the FQDNs of all attached hosts, sorted
func (r *networkRepositoryImpl) Hosts(ctx context.Context, network string) ([]string, error) {
	if err := r.mustExist(ctx, network); err != nil {
		return nil, err
	}
	return r.hostNames(ctx, network)
}

func (r *networkRepositoryImpl) hostNames(ctx context.Context, network string) ([]string, error) {
	hosts, err := r.store.Children(ctx, networkPath(network).Child(networkHostDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list network hosts: %w", err)
	}
	return hosts, nil
}

// attached loads every attached host. Uniqueness checks scan this full list.
func (r *networkRepositoryImpl) attached(ctx context.Context, network string) ([]domain.NetworkHost, error) {
	names, err := r.hostNames(ctx, network)
	if err != nil {
		return nil, err
	}
	hosts := make([]domain.NetworkHost, 0, len(names))
	for _, fqdn := range names {
		h, err := r.loadHost(ctx, network, fqdn)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}
