package domain

import "strings"

// HostType classifies a host as physical hardware or a virtual machine
type HostType string

const (
	HostTypeHW HostType = "hw"
	HostTypeVM HostType = "vm"
)

// HostTypes lists every accepted host type in display order
var HostTypes = []HostType{HostTypeHW, HostTypeVM}

// Host represents a machine in the inventory
type Host struct {
	FQDN   string            // Fully qualified domain name, the host key
	Type   HostType          // hw or vm
	Cores  string            // Core count, normalized to a plain integer
	Memory string            // Main memory in bytes
	VMHost string            // FQDN of the hypervisor, only for vm hosts
	Disks  map[string]string // Disk name to size in bytes
	NICs   map[string]string // NIC name to MAC address
	Tags   map[string]string // Tag name to optional value
}

// Hostname returns the first label of the FQDN
func (h Host) Hostname() string {
	name, _, _ := strings.Cut(h.FQDN, ".")
	return name
}

// Network represents an IPv4 network
type Network struct {
	Network      string   // Dotted-quad network address, the network key
	Mask         int      // Prefix length, 1 to 32
	Last         string   // Last sequentially allocated address
	AddressFree  []string // Freed addresses awaiting reuse, most recent last
	BootServer   string
	BootFilename string
	Router       string
	Hosts        []NetworkHost
}

// Broadcast returns the broadcast address of the network
func (n Network) Broadcast() string {
	return Broadcast(n.Network, n.Mask)
}

// NetworkHost is a host attachment inside a network
type NetworkHost struct {
	FQDN        string
	MACAddress  string
	IPv4Address string
}

// MacPool is the singleton MAC address pool
type MacPool struct {
	Prefix string   // Three byte prefix, e.g. 00:16:3e
	Last   string   // Last issued full address
	Free   []string // Returned addresses awaiting reuse, most recent last
}

// Inventory is a complete snapshot of the database
type Inventory struct {
	Hosts    []Host
	Networks []Network
	Mac      MacPool
}
