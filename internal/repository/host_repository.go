package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jbweber/homelab/cinv/internal/domain"
	"github.com/jbweber/homelab/cinv/internal/property"
)

const (
	hostArea = "host"

	hostFieldType   = "host_type"
	hostFieldCores  = "cores"
	hostFieldMemory = "memory"
	hostFieldVMHost = "vm_host"
	hostFieldTag    = "tag"
)

// HostFilter narrows a host listing. Empty fields match everything; a host
// must carry all Tags to match.
type HostFilter struct {
	Type domain.HostType
	Tags []string
}

// HostRepository defines domain-specific operations for hosts
type HostRepository interface {
	Add(ctx context.Context, fqdn string, hostType domain.HostType) error
	Exists(ctx context.Context, fqdn string) (bool, error)
	Get(ctx context.Context, fqdn string) (domain.Host, error)
	List(ctx context.Context, filter HostFilter) ([]string, error)
	Delete(ctx context.Context, fqdn string, recursive bool) error

	SetCores(ctx context.Context, fqdn, cores string) (string, error)
	SetMemory(ctx context.Context, fqdn, memory string) (string, error)
	SetVMHost(ctx context.Context, fqdn, vmHost string) error
	// VMHosts groups vm hosts under their hypervisor. VMs are listed in
	// host order.
	VMHosts(ctx context.Context, filter HostFilter) (map[string][]string, error)

	AddDisk(ctx context.Context, fqdn, name, size string) (diskName, sizeBytes string, err error)
	DiskSize(ctx context.Context, fqdn, name string) (string, error)
	Disks(ctx context.Context, fqdn string) ([]string, error)

	AddNIC(ctx context.Context, fqdn, name, mac string) (string, error)
	DeleteNIC(ctx context.Context, fqdn, name string) error
	NICAddress(ctx context.Context, fqdn, name string) (string, error)
	NICs(ctx context.Context, fqdn string) ([]string, error)

	AddTag(ctx context.Context, fqdn, name, value string, force bool) error
	DeleteTag(ctx context.Context, fqdn, name string, force bool) error
	Tags(ctx context.Context, fqdn string) ([]string, error)
}

// hostRepositoryImpl implements HostRepository
type hostRepositoryImpl struct {
	store  property.Store
	logger *slog.Logger
}

// NewHostRepository creates a new host repository
func NewHostRepository(store property.Store, logger *slog.Logger) HostRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &hostRepositoryImpl{
		store:  store,
		logger: logger,
	}
}

func hostPath(fqdn string) property.Path {
	return property.Path{hostArea, fqdn}
}

func (r *hostRepositoryImpl) scalar(fqdn, field string) property.Scalar {
	return property.Scalar{Store: r.store, Entity: hostPath(fqdn), Field: field}
}

func (r *hostRepositoryImpl) mapping(fqdn, field string) property.Map {
	return property.Map{Store: r.store, Entity: hostPath(fqdn), Field: field}
}

// Add creates a host with the given type
func (r *hostRepositoryImpl) Add(ctx context.Context, fqdn string, hostType domain.HostType) error {
	if fqdn == "" {
		return fmt.Errorf("%w: cannot create host with empty fqdn", ErrInvalidEntity)
	}
	if _, err := domain.ParseHostType(string(hostType)); err != nil {
		return invalid(err)
	}

	if err := r.store.Create(ctx, hostPath(fqdn)); err != nil {
		if errors.Is(err, property.ErrExists) {
			return fmt.Errorf("host already exists: %s: %w", fqdn, ErrDuplicate)
		}
		if errors.Is(err, property.ErrInvalidPath) {
			return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
		}
		return fmt.Errorf("failed to create host: %w", err)
	}

	if err := r.scalar(fqdn, hostFieldType).Set(ctx, string(hostType)); err != nil {
		return fmt.Errorf("failed to set host type: %w", err)
	}
	return nil
}

// Exists reports whether the host is present
func (r *hostRepositoryImpl) Exists(ctx context.Context, fqdn string) (bool, error) {
	if fqdn == "" {
		return false, nil
	}
	ok, err := r.store.Exists(ctx, hostPath(fqdn))
	if errors.Is(err, property.ErrInvalidPath) {
		return false, nil
	}
	return ok, err
}

func (r *hostRepositoryImpl) mustExist(ctx context.Context, fqdn string) error {
	ok, err := r.Exists(ctx, fqdn)
	if err != nil {
		return fmt.Errorf("failed to check host: %w", err)
	}
	if !ok {
		return fmt.Errorf("host does not exist: %s: %w", fqdn, ErrNotFound)
	}
	return nil
}

// Get loads every attribute of a host
func (r *hostRepositoryImpl) Get(ctx context.Context, fqdn string) (domain.Host, error) {
	if err := r.mustExist(ctx, fqdn); err != nil {
		return domain.Host{}, err
	}

	host := domain.Host{FQDN: fqdn}
	scalars := []struct {
		field string
		dst   *string
	}{
		{hostFieldCores, &host.Cores},
		{hostFieldMemory, &host.Memory},
		{hostFieldVMHost, &host.VMHost},
	}
	for _, s := range scalars {
		v, err := r.scalar(fqdn, s.field).Value(ctx)
		if err != nil {
			return domain.Host{}, fmt.Errorf("failed to read %s: %w", s.field, err)
		}
		*s.dst = v
	}

	hostType, err := r.scalar(fqdn, hostFieldType).Value(ctx)
	if err != nil {
		return domain.Host{}, fmt.Errorf("failed to read host type: %w", err)
	}
	host.Type = domain.HostType(hostType)

	maps := []struct {
		field string
		dst   *map[string]string
	}{
		{resourceFields[ResourceDisk].field, &host.Disks},
		{resourceFields[ResourceNIC].field, &host.NICs},
		{hostFieldTag, &host.Tags},
	}
	for _, m := range maps {
		all, err := r.mapping(fqdn, m.field).All(ctx)
		if err != nil {
			return domain.Host{}, fmt.Errorf("failed to read %s: %w", m.field, err)
		}
		*m.dst = all
	}

	return host, nil
}

// List returns the FQDNs of all hosts matching filter, sorted
func (r *hostRepositoryImpl) List(ctx context.Context, filter HostFilter) ([]string, error) {
	if filter.Type != "" {
		if _, err := domain.ParseHostType(string(filter.Type)); err != nil {
			return nil, invalid(err)
		}
	}

	all, err := r.store.Children(ctx, property.Path{hostArea})
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}

	hosts := []string{}
	for _, fqdn := range all {
		match, err := r.matches(ctx, fqdn, filter)
		if err != nil {
			return nil, err
		}
		if match {
			hosts = append(hosts, fqdn)
		}
	}
	return hosts, nil
}

func (r *hostRepositoryImpl) matches(ctx context.Context, fqdn string, filter HostFilter) (bool, error) {
	if filter.Type != "" {
		hostType, err := r.scalar(fqdn, hostFieldType).Value(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to read host type: %w", err)
		}
		if hostType != string(filter.Type) {
			return false, nil
		}
	}

	if len(filter.Tags) > 0 {
		tags, err := r.mapping(fqdn, hostFieldTag).Keys(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to read tags: %w", err)
		}
		for _, tag := range filter.Tags {
			if !slices.Contains(tags, tag) {
				return false, nil
			}
		}
	}
	return true, nil
}

// Delete removes a host. Hosts owning disks or nics are only removed when
// recursive is set.
func (r *hostRepositoryImpl) Delete(ctx context.Context, fqdn string, recursive bool) error {
	if err := r.mustExist(ctx, fqdn); err != nil {
		return err
	}

	if !recursive {
		for _, kind := range []ResourceKind{ResourceDisk, ResourceNIC} {
			n, err := r.mapping(fqdn, resourceFields[kind].field).Len(ctx)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", kind, err)
			}
			if n > 0 {
				return fmt.Errorf("cannot delete, host contains disk or nic: %s: %w", fqdn, ErrHasChildren)
			}
		}
	}

	r.logger.Debug("Removing host", "fqdn", fqdn, "recursive", recursive)
	if err := r.store.Remove(ctx, hostPath(fqdn)); err != nil {
		return fmt.Errorf("failed to delete host: %w", err)
	}
	return nil
}

func (r *hostRepositoryImpl) setSize(ctx context.Context, fqdn, field, value string) (string, error) {
	if err := r.mustExist(ctx, fqdn); err != nil {
		return "", err
	}
	size, err := domain.ParseSize(value)
	if err != nil {
		return "", invalid(err)
	}
	if err := r.scalar(fqdn, field).Set(ctx, size); err != nil {
		return "", fmt.Errorf("failed to set %s: %w", field, err)
	}
	return size, nil
}

// SetCores stores the core count, accepting size suffixes
func (r *hostRepositoryImpl) SetCores(ctx context.Context, fqdn, cores string) (string, error) {
	return r.setSize(ctx, fqdn, hostFieldCores, cores)
}

// SetMemory stores main memory in bytes, accepting size suffixes
func (r *hostRepositoryImpl) SetMemory(ctx context.Context, fqdn, memory string) (string, error) {
	return r.setSize(ctx, fqdn, hostFieldMemory, memory)
}

// SetVMHost records the hypervisor of a vm host
func (r *hostRepositoryImpl) SetVMHost(ctx context.Context, fqdn, vmHost string) error {
	if err := r.mustExist(ctx, fqdn); err != nil {
		return err
	}
	hostType, err := r.scalar(fqdn, hostFieldType).Value(ctx)
	if err != nil {
		return fmt.Errorf("failed to read host type: %w", err)
	}
	if hostType != string(domain.HostTypeVM) {
		return fmt.Errorf("%w: can only configure vm-host for VMs", ErrInvalidEntity)
	}
	if vmHost == "" {
		return fmt.Errorf("%w: vm host must not be empty", ErrInvalidEntity)
	}
	if err := r.scalar(fqdn, hostFieldVMHost).Set(ctx, vmHost); err != nil {
		return fmt.Errorf("failed to set vm host: %w", err)
	}
	return nil
}

func (r *hostRepositoryImpl) VMHosts(ctx context.Context, filter HostFilter) (map[string][]string, error) {
	hosts, err := r.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	vmHosts := map[string][]string{}
	for _, fqdn := range hosts {
		vmHost, err := r.scalar(fqdn, hostFieldVMHost).Value(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read vm host: %w", err)
		}
		if vmHost != "" {
			vmHosts[vmHost] = append(vmHosts[vmHost], fqdn)
		}
	}
	return vmHosts, nil
}

// resourceName returns the explicit name if it is free, or the next
// automatic one when name is empty.
func (r *hostRepositoryImpl) resourceName(ctx context.Context, fqdn string, kind ResourceKind, name string) (string, error) {
	rf := resourceFields[kind]
	keys, err := r.mapping(fqdn, rf.field).Keys(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", kind, err)
	}
	if name == "" {
		next, err := NextName(rf.prefix, keys)
		if err != nil {
			return "", err
		}
		r.logger.Debug("Generated name", "fqdn", fqdn, "kind", kind, "name", next)
		return next, nil
	}
	if slices.Contains(keys, name) {
		return "", fmt.Errorf("%s already exists: %s: %w", kind, name, ErrDuplicate)
	}
	return name, nil
}

// AddDisk adds a disk, generating a name if none is given
func (r *hostRepositoryImpl) AddDisk(ctx context.Context, fqdn, name, size string) (string, string, error) {
	if err := r.mustExist(ctx, fqdn); err != nil {
		return "", "", err
	}
	sizeBytes, err := domain.ParseSize(size)
	if err != nil {
		return "", "", invalid(err)
	}
	name, err = r.resourceName(ctx, fqdn, ResourceDisk, name)
	if err != nil {
		return "", "", err
	}
	if err := r.mapping(fqdn, resourceFields[ResourceDisk].field).Set(ctx, name, sizeBytes); err != nil {
		return "", "", fmt.Errorf("failed to add disk: %w", err)
	}
	return name, sizeBytes, nil
}

func (r *hostRepositoryImpl) mapValue(ctx context.Context, fqdn string, kind ResourceKind, name string) (string, error) {
	if err := r.mustExist(ctx, fqdn); err != nil {
		return "", err
	}
	v, ok, err := r.mapping(fqdn, resourceFields[kind].field).Get(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", kind, err)
	}
	if !ok {
		return "", fmt.Errorf("host %s does not have %s: %s: %w", fqdn, kind, name, ErrNotFound)
	}
	return v, nil
}

func (r *hostRepositoryImpl) mapKeys(ctx context.Context, fqdn, field string) ([]string, error) {
	if err := r.mustExist(ctx, fqdn); err != nil {
		return nil, err
	}
	keys, err := r.mapping(fqdn, field).Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", field, err)
	}
	return keys, nil
}

func (r *hostRepositoryImpl) DiskSize(ctx context.Context, fqdn, name string) (string, error) {
	return r.mapValue(ctx, fqdn, ResourceDisk, name)
}

func (r *hostRepositoryImpl) Disks(ctx context.Context, fqdn string) ([]string, error) {
	return r.mapKeys(ctx, fqdn, resourceFields[ResourceDisk].field)
}

// AddNIC adds a network interface card, generating a name if none is given
func (r *hostRepositoryImpl) AddNIC(ctx context.Context, fqdn, name, mac string) (string, error) {
	if err := r.mustExist(ctx, fqdn); err != nil {
		return "", err
	}
	if err := domain.ValidateMAC(mac); err != nil {
		return "", invalid(err)
	}
	name, err := r.resourceName(ctx, fqdn, ResourceNIC, name)
	if err != nil {
		return "", err
	}
	if err := r.mapping(fqdn, resourceFields[ResourceNIC].field).Set(ctx, name, mac); err != nil {
		return "", fmt.Errorf("failed to add nic: %w", err)
	}
	return name, nil
}

func (r *hostRepositoryImpl) DeleteNIC(ctx context.Context, fqdn, name string) error {
	if err := r.mustExist(ctx, fqdn); err != nil {
		return err
	}
	ok, err := r.mapping(fqdn, resourceFields[ResourceNIC].field).Delete(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to delete nic: %w", err)
	}
	if !ok {
		return fmt.Errorf("cannot delete non existing nic: %s: %w", name, ErrNotFound)
	}
	return nil
}

func (r *hostRepositoryImpl) NICAddress(ctx context.Context, fqdn, name string) (string, error) {
	return r.mapValue(ctx, fqdn, ResourceNIC, name)
}

func (r *hostRepositoryImpl) NICs(ctx context.Context, fqdn string) ([]string, error) {
	return r.mapKeys(ctx, fqdn, resourceFields[ResourceNIC].field)
}

// AddTag sets a tag. An existing tag is only overwritten with force.
func (r *hostRepositoryImpl) AddTag(ctx context.Context, fqdn, name, value string, force bool) error {
	if err := r.mustExist(ctx, fqdn); err != nil {
		return err
	}
	tags := r.mapping(fqdn, hostFieldTag)
	exists, err := tags.Contains(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to read tags: %w", err)
	}
	if exists && !force {
		return fmt.Errorf("tag already exists: %s: %w", name, ErrDuplicate)
	}
	if err := tags.Set(ctx, name, value); err != nil {
		return fmt.Errorf("failed to add tag: %w", err)
	}
	return nil
}

// DeleteTag removes a tag. A missing tag is only ignored with force.
func (r *hostRepositoryImpl) DeleteTag(ctx context.Context, fqdn, name string, force bool) error {
	if err := r.mustExist(ctx, fqdn); err != nil {
		return err
	}
	ok, err := r.mapping(fqdn, hostFieldTag).Delete(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	if !ok && !force {
		return fmt.Errorf("tag does not exist: %s: %w", name, ErrNotFound)
	}
	return nil
}

func (r *hostRepositoryImpl) Tags(ctx context.Context, fqdn string) ([]string, error) {
	return r.mapKeys(ctx, fqdn, hostFieldTag)
}
