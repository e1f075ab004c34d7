package domain

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// ErrValidation is returned for values that fail syntax or range checks
var ErrValidation = errors.New("validation failed")

var (
	sizePattern      = regexp.MustCompile(`^([0-9]+)([A-Za-z]?)$`)
	macPattern       = regexp.MustCompile(`(?i)^([0-9A-F]{2}[-:]){5}[0-9A-F]{2}$`)
	macPrefixPattern = regexp.MustCompile(`(?i)^([0-9A-F]{2}[-:]){2}[0-9A-F]{2}$`)
	ipv4Pattern      = regexp.MustCompile(`^(([0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])\.){3}([0-9]|[1-9][0-9]|1[0-9]{2}|2[0-4][0-9]|25[0-5])$`)
)

// sizeUnits maps a suffix to its power of 1024
var sizeUnits = map[byte]int64{
	'k': 1, 'm': 2, 'g': 3, 't': 4, 'p': 5, 'e': 6, 'z': 7, 'y': 8,
}

// ParseSize converts a size such as "101G" into a decimal byte count. A bare
// integer is returned unchanged. The result is a string because the larger
// units overflow 64 bits.
func ParseSize(value string) (string, error) {
	m := sizePattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return "", fmt.Errorf("%w: invalid size %q", ErrValidation, value)
	}

	n, ok := new(big.Int).SetString(m[1], 10)
	if !ok {
		return "", fmt.Errorf("%w: invalid size %q", ErrValidation, value)
	}
	if m[2] == "" {
		return n.String(), nil
	}

	power, ok := sizeUnits[strings.ToLower(m[2])[0]]
	if !ok {
		return "", fmt.Errorf("%w: unsupported suffix %s", ErrValidation, m[2])
	}

	multiplier := new(big.Int).Exp(big.NewInt(1024), big.NewInt(power), nil)
	return n.Mul(n, multiplier).String(), nil
}

// ParseHostType validates a host type tag
func ParseHostType(value string) (HostType, error) {
	for _, t := range HostTypes {
		if string(t) == value {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: host type must be one of hw vm, got %q", ErrValidation, value)
}

// ValidateMAC checks a full six byte MAC address
func ValidateMAC(mac string) error {
	if !macPattern.MatchString(mac) {
		return fmt.Errorf("%w: not a valid mac address: %s", ErrValidation, mac)
	}
	return nil
}

// ValidateMACPrefix checks a three byte MAC prefix such as 00:16:3e
func ValidateMACPrefix(prefix string) error {
	if !macPrefixPattern.MatchString(prefix) {
		return fmt.Errorf("%w: wrong mac prefix format %q, use 00:11:22", ErrValidation, prefix)
	}
	return nil
}

// ValidateIPv4 checks a dotted-quad address
func ValidateIPv4(addr string) error {
	if !ipv4Pattern.MatchString(addr) {
		return fmt.Errorf("%w: not a valid IPv4 address: %s", ErrValidation, addr)
	}
	return nil
}

// ParseMask parses a prefix length and checks that it lies in 1..32
func ParseMask(value string) (int, error) {
	mask, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: mask must be an integer", ErrValidation)
	}
	if err := ValidateMask(mask); err != nil {
		return 0, err
	}
	return mask, nil
}

// ValidateMask checks that mask lies in 1..32
func ValidateMask(mask int) error {
	if mask < 1 || mask > 32 {
		return fmt.Errorf("%w: mask must be between 1 and 32 (inclusive)", ErrValidation)
	}
	return nil
}

// ValidateNetworkAddress checks that network is its own base address under mask
func ValidateNetworkAddress(network string, mask int) error {
	if err := ValidateIPv4(network); err != nil {
		return err
	}
	if err := ValidateMask(mask); err != nil {
		return err
	}
	if base := NetworkAddress(network, mask); base != network {
		return fmt.Errorf("%w: given address is not the net address (%s != %s)", ErrValidation, network, base)
	}
	return nil
}
