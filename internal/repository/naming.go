package repository

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ResourceKind identifies a named per-host resource
type ResourceKind string

const (
	ResourceDisk ResourceKind = "disk"
	ResourceNIC  ResourceKind = "nic"
)

// resourceFields maps a resource kind to its host field and name prefix
var resourceFields = map[ResourceKind]struct {
	field  string
	prefix string
}{
	ResourceDisk: {field: "disk", prefix: "disk"},
	ResourceNIC:  {field: "nic", prefix: "nic"},
}

// NextName derives the next automatic resource name from the existing keys.
//
// The lexicographically greatest key carrying prefix is taken and its numeric
// suffix incremented, so {disk2, disk10} yields disk3. Inventories created by
// earlier tooling rely on this ordering. If the derived name is already taken
// the index keeps increasing until a free one is found.
func NextName(prefix string, keys []string) (string, error) {
	var matching []string
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			matching = append(matching, k)
		}
	}
	if len(matching) == 0 {
		return prefix + "0", nil
	}

	slices.Sort(matching)
	last := matching[len(matching)-1]
	n, err := strconv.Atoi(strings.TrimPrefix(last, prefix))
	if err != nil || n < 0 {
		return "", fmt.Errorf("%w: cannot derive next name from %q", ErrInvalidEntity, last)
	}

	for {
		n++
		name := prefix + strconv.Itoa(n)
		if !slices.Contains(keys, name) {
			return name, nil
		}
	}
}
