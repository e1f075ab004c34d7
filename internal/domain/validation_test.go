package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"4", "4"},
		{"1024", "1024"},
		{"1k", "1024"},
		{"2K", "2048"},
		{"101G", "108447924224"},
		{"1t", "1099511627776"},
		{"1e", "1152921504606846976"},
		{"1y", "1208925819614629174706176"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSize_Invalid(t *testing.T) {
	_, err := ParseSize("10x")
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "unsupported suffix")

	for _, in := range []string{"", "G", "1.5G", "-1", "10GB", "ten"} {
		_, err := ParseSize(in)
		assert.ErrorIs(t, err, ErrValidation, in)
	}
}

func TestParseHostType(t *testing.T) {
	ht, err := ParseHostType("vm")
	require.NoError(t, err)
	assert.Equal(t, HostTypeVM, ht)

	_, err = ParseHostType("VM")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseHostType("container")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidateMAC(t *testing.T) {
	assert.NoError(t, ValidateMAC("00:11:22:33:44:55"))
	assert.NoError(t, ValidateMAC("aa-BB-cc-DD-ee-FF"))
	assert.ErrorIs(t, ValidateMAC("00:11:22"), ErrValidation)
	assert.ErrorIs(t, ValidateMAC("00:11:22:33:44:5g"), ErrValidation)
	assert.ErrorIs(t, ValidateMAC("00:11:22:33:44:55:66"), ErrValidation)

	assert.NoError(t, ValidateMACPrefix("00:16:3e"))
	assert.NoError(t, ValidateMACPrefix("00-16-3E"))
	assert.ErrorIs(t, ValidateMACPrefix("00:16"), ErrValidation)
	assert.ErrorIs(t, ValidateMACPrefix("00:11:22:33:44:55"), ErrValidation)
}

func TestValidateIPv4(t *testing.T) {
	for _, ok := range []string{"0.0.0.0", "10.0.0.1", "255.255.255.255", "192.168.100.9"} {
		assert.NoError(t, ValidateIPv4(ok), ok)
	}
	for _, bad := range []string{"256.0.0.1", "10.0.0", "10.0.0.01", "a.b.c.d", " 10.0.0.1", "10.0.0.1/24"} {
		assert.ErrorIs(t, ValidateIPv4(bad), ErrValidation, bad)
	}
}

func TestParseMask(t *testing.T) {
	mask, err := ParseMask("24")
	require.NoError(t, err)
	assert.Equal(t, 24, mask)

	for _, bad := range []string{"0", "33", "-1", "x"} {
		_, err := ParseMask(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestValidateNetworkAddress(t *testing.T) {
	assert.NoError(t, ValidateNetworkAddress("127.0.0.0", 16))
	assert.NoError(t, ValidateNetworkAddress("10.0.0.0", 24))
	assert.NoError(t, ValidateNetworkAddress("10.0.0.7", 32))

	err := ValidateNetworkAddress("127.0.0.1", 16)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "127.0.0.0")
}
