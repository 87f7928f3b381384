// Package address implements the fixed-width address value type shared by
// the wire codecs and the capability table: four octets, a netmask, and a
// port, with a bespoke string grammar distinct from plain net.IP formatting.
package address

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Address is a 4-octet IPv4 address with an optional netmask and port.
// Two addresses are equal iff their Octets and Port match; Netmask does
// not participate in equality because delegatees and owners are compared
// by reachable endpoint, not by subnet.
type Address struct {
	Octets  [4]byte
	Netmask [4]byte
	Port    uint16
}

// defaultNetmask is applied when a parsed string carries no /mask suffix.
var defaultNetmask = [4]byte{0xff, 0xff, 0xff, 0xff}

// New builds an Address from four octets and a port, with a /32 netmask.
func New(a, b, c, d byte, port uint16) Address {
	return Address{
		Octets:  [4]byte{a, b, c, d},
		Netmask: defaultNetmask,
		Port:    port,
	}
}

// Parse accepts the grammar `a.b.c.d[/mask][:port]`. Mask, when present, is
// a dotted-quad netmask, not a CIDR prefix length. Port defaults to 0 when
// omitted.
func Parse(s string) (Address, error) {
	var addr Address
	addr.Netmask = defaultNetmask

	rest := s
	if idx := strings.LastIndex(rest, ":"); idx >= 0 && !strings.Contains(rest[idx+1:], "/") {
		portStr := rest[idx+1:]
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return Address{}, fmt.Errorf("address: invalid port %q: %w", portStr, err)
		}
		addr.Port = uint16(port)
		rest = rest[:idx]
	}

	if idx := strings.Index(rest, "/"); idx >= 0 {
		maskStr := rest[idx+1:]
		mask := net.ParseIP(maskStr)
		if mask == nil {
			return Address{}, fmt.Errorf("address: invalid netmask %q", maskStr)
		}
		mask4 := mask.To4()
		if mask4 == nil {
			return Address{}, fmt.Errorf("address: netmask %q is not IPv4", maskStr)
		}
		copy(addr.Netmask[:], mask4)
		rest = rest[:idx]
	}

	ip := net.ParseIP(rest)
	if ip == nil {
		return Address{}, fmt.Errorf("address: invalid IPv4 octets %q", rest)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return Address{}, fmt.Errorf("address: %q is not IPv4", rest)
	}
	copy(addr.Octets[:], ip4)

	return addr, nil
}

// String formats the address as `a.b.c.d:port`. The netmask is omitted
// when it equals the implicit /32 default, matching the round-trip
// property required of plain `a.b.c.d:port` strings.
func (a Address) String() string {
	ip := net.IPv4(a.Octets[0], a.Octets[1], a.Octets[2], a.Octets[3]).String()
	if a.Netmask == defaultNetmask {
		return fmt.Sprintf("%s:%d", ip, a.Port)
	}
	mask := net.IPv4(a.Netmask[0], a.Netmask[1], a.Netmask[2], a.Netmask[3]).String()
	return fmt.Sprintf("%s/%s:%d", ip, mask, a.Port)
}

// IP returns the address octets as a net.IP.
func (a Address) IP() net.IP {
	return net.IPv4(a.Octets[0], a.Octets[1], a.Octets[2], a.Octets[3])
}

// UDPAddr returns a *net.UDPAddr suitable for net.DialUDP/WriteTo.
func (a Address) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: a.IP(), Port: int(a.Port)}
}

// Equal compares two addresses by octets and port, ignoring netmask.
func (a Address) Equal(other Address) bool {
	return a.Octets == other.Octets && a.Port == other.Port
}

// FromUDPAddr builds an Address from a resolved UDP peer address.
func FromUDPAddr(udp *net.UDPAddr) (Address, error) {
	ip4 := udp.IP.To4()
	if ip4 == nil {
		return Address{}, fmt.Errorf("address: %s is not IPv4", udp.IP)
	}
	var addr Address
	addr.Netmask = defaultNetmask
	copy(addr.Octets[:], ip4)
	addr.Port = uint16(udp.Port)
	return addr, nil
}
