// Package codec renders inventory snapshots for consumption outside cinv.
package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/homelab/cinv/internal/domain"
)

// Exporter writes a complete inventory snapshot
type Exporter interface {
	Export(w io.Writer, inv domain.Inventory) error
	Format() string
}

// YAMLCodec exports the inventory as a YAML document
type YAMLCodec struct {
	Indent int
}

// NewYAMLCodec creates a codec with two space indentation
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{Indent: 2}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

type inventoryDoc struct {
	Hosts    []hostDoc    `yaml:"hosts"`
	Networks []networkDoc `yaml:"networks"`
	Mac      macDoc       `yaml:"mac"`
}

type hostDoc struct {
	FQDN     string            `yaml:"fqdn"`
	Hostname string            `yaml:"hostname"`
	Type     string            `yaml:"type"`
	Cores    string            `yaml:"cores,omitempty"`
	Memory   string            `yaml:"memory,omitempty"`
	VMHost   string            `yaml:"vm_host,omitempty"`
	Disks    map[string]string `yaml:"disks,omitempty"`
	NICs     map[string]string `yaml:"nics,omitempty"`
	Tags     map[string]string `yaml:"tags,omitempty"`
}

type networkDoc struct {
	Network      string           `yaml:"network"`
	Mask         int              `yaml:"mask"`
	Broadcast    string           `yaml:"broadcast"`
	Last         string           `yaml:"last,omitempty"`
	AddressFree  []string         `yaml:"address_free,omitempty"`
	BootServer   string           `yaml:"bootserver,omitempty"`
	BootFilename string           `yaml:"bootfilename,omitempty"`
	Router       string           `yaml:"router,omitempty"`
	Hosts        []networkHostDoc `yaml:"hosts"`
}

type networkHostDoc struct {
	FQDN        string `yaml:"fqdn"`
	MACAddress  string `yaml:"mac_address"`
	IPv4Address string `yaml:"ipv4_address"`
}

type macDoc struct {
	Prefix string   `yaml:"prefix,omitempty"`
	Last   string   `yaml:"last,omitempty"`
	Free   []string `yaml:"free,omitempty"`
}

func toDoc(inv domain.Inventory) inventoryDoc {
	doc := inventoryDoc{
		Hosts:    make([]hostDoc, 0, len(inv.Hosts)),
		Networks: make([]networkDoc, 0, len(inv.Networks)),
		Mac: macDoc{
			Prefix: inv.Mac.Prefix,
			Last:   inv.Mac.Last,
			Free:   inv.Mac.Free,
		},
	}

	for _, h := range inv.Hosts {
		doc.Hosts = append(doc.Hosts, hostDoc{
			FQDN:     h.FQDN,
			Hostname: h.Hostname(),
			Type:     string(h.Type),
			Cores:    h.Cores,
			Memory:   h.Memory,
			VMHost:   h.VMHost,
			Disks:    h.Disks,
			NICs:     h.NICs,
			Tags:     h.Tags,
		})
	}

	for _, n := range inv.Networks {
		nd := networkDoc{
			Network:      n.Network,
			Mask:         n.Mask,
			Broadcast:    n.Broadcast(),
			Last:         n.Last,
			AddressFree:  n.AddressFree,
			BootServer:   n.BootServer,
			BootFilename: n.BootFilename,
			Router:       n.Router,
			Hosts:        make([]networkHostDoc, 0, len(n.Hosts)),
		}
		for _, h := range n.Hosts {
			nd.Hosts = append(nd.Hosts, networkHostDoc(h))
		}
		doc.Networks = append(doc.Networks, nd)
	}
	return doc
}

// Export encodes inv. Map keys are emitted in sorted order by the encoder,
// slices keep the order of the snapshot.
func (c *YAMLCodec) Export(w io.Writer, inv domain.Inventory) error {
	enc := yaml.NewEncoder(w)
	indent := c.Indent
	if indent <= 0 {
		indent = 2
	}
	enc.SetIndent(indent)

	if err := enc.Encode(toDoc(inv)); err != nil {
		return fmt.Errorf("failed to encode inventory: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush inventory: %w", err)
	}
	return nil
}
