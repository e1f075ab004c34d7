package domain

import "net"

// IPToInt converts a dotted-quad address to its 32-bit value. Invalid input
// yields 0; callers validate first.
func IPToInt(addr string) uint32 {
	ip := net.ParseIP(addr).To4()
	if ip == nil {
		return 0
	}
	return uint32(ip[0])<<24 + uint32(ip[1])<<16 + uint32(ip[2])<<8 + uint32(ip[3])
}

// IntToIP renders a 32-bit value as a dotted-quad address
func IntToIP(ipInt uint32) string {
	return net.IPv4(byte(ipInt>>24), byte(ipInt>>16), byte(ipInt>>8), byte(ipInt)).String()
}

func maskBits(mask int) uint32 {
	return uint32((uint64(1)<<32 - uint64(1)<<(32-mask)) & 0xFFFFFFFF)
}

// NetworkAddress maps addr onto the base address of its network
func NetworkAddress(addr string, mask int) string {
	return IntToIP(IPToInt(addr) & maskBits(mask))
}

// Broadcast returns the highest address of the network
func Broadcast(network string, mask int) string {
	return IntToIP(IPToInt(network) | ^maskBits(mask))
}

// MaskDottedQuad renders a prefix length as a netmask, e.g. 24 as 255.255.255.0
func MaskDottedQuad(mask int) string {
	return IntToIP(maskBits(mask))
}

// InNetwork reports whether addr belongs to network under mask
func InNetwork(addr, network string, mask int) bool {
	return NetworkAddress(addr, mask) == network
}
