package config

import (
	"encoding/binary"
	"fmt"
	"net"
)

// CIDRHost returns the host address with the given number inside prefix.
// Negative numbers count back from the end of the range. IPv4 only.
func CIDRHost(prefix string, hostnum int) (string, error) {
	_, network, err := net.ParseCIDR(prefix)
	if err != nil {
		return "", fmt.Errorf("invalid CIDR prefix: %w", err)
	}
	ip4 := network.IP.To4()
	if ip4 == nil {
		return "", fmt.Errorf("only IPv4 addresses are supported, got %s", prefix)
	}

	ones, bits := network.Mask.Size()
	size := uint64(1) << (bits - ones)

	var offset uint64
	switch {
	case hostnum < 0 && uint64(-hostnum) <= size:
		offset = size - uint64(-hostnum)
	case hostnum >= 0 && uint64(hostnum) < size:
		offset = uint64(hostnum)
	default:
		return "", fmt.Errorf("host number %d exceeds max hosts %d", hostnum, size)
	}

	// #nosec G115
	v := binary.BigEndian.Uint32(ip4) + uint32(offset)
	out := make(net.IP, 4)
	binary.BigEndian.PutUint32(out, v)
	return out.String(), nil
}

// parseCIDR parses s and returns the network, or an error naming field.
func parseCIDR(field, s string) (*net.IPNet, error) {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a valid CIDR", field, s)
	}
	return n, nil
}

// cidrContains reports whether outer fully contains inner.
func cidrContains(outer, inner *net.IPNet) bool {
	outerOnes, outerBits := outer.Mask.Size()
	innerOnes, innerBits := inner.Mask.Size()
	if outerBits != innerBits || innerOnes < outerOnes {
		return false
	}
	return outer.Contains(inner.IP)
}

// cidrOverlaps reports whether a and b share any address.
func cidrOverlaps(a, b *net.IPNet) bool {
	return a.Contains(b.IP) || b.Contains(a.IP)
}
