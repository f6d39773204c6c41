package wire

import (
	"fmt"
	"net"
	"strconv"

	"github.com/renproject/surge"
)

// An Address is the physical network location at which a node is believed to
// be reachable. It is a comparable value type, and can be used as a map key.
type Address struct {
	IP   string `json:"ip"`
	Port uint16 `json:"port"`
}

// NewAddress returns an Address from an IP (or hostname) and port.
func NewAddress(ip string, port uint16) Address {
	return Address{IP: ip, Port: port}
}

// ParseAddress parses a "host:port" string into an Address.
func ParseAddress(value string) (Address, error) {
	host, portStr, err := net.SplitHostPort(value)
	if err != nil {
		return Address{}, fmt.Errorf("splitting host and port: %v", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("parsing port: %v", err)
	}
	return Address{IP: host, Port: uint16(port)}, nil
}

// AddressFromNet returns the Address of a TCP network address. If the port is
// non-zero, it replaces the port of the network address.
func AddressFromNet(addr net.Addr, port uint16) (Address, error) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		parsed, err := ParseAddress(addr.String())
		if err != nil {
			return Address{}, err
		}
		if port != 0 {
			parsed.Port = port
		}
		return parsed, nil
	}
	if port == 0 {
		port = uint16(tcpAddr.Port)
	}
	return Address{IP: tcpAddr.IP.String(), Port: port}, nil
}

// String returns the "host:port" representation of the Address, suitable for
// dialing.
func (addr Address) String() string {
	return net.JoinHostPort(addr.IP, strconv.Itoa(int(addr.Port)))
}

// IsUnspecified returns true if the IP of the Address is empty, or is the
// unspecified IPv4 or IPv6 address. Such an Address can be listened on, but
// not dialed by another node.
func (addr Address) IsUnspecified() bool {
	if addr.IP == "" {
		return true
	}
	ip := net.ParseIP(addr.IP)
	return ip != nil && ip.IsUnspecified()
}

// IsZero returns true if the Address is the empty Address.
func (addr Address) IsZero() bool {
	return addr == Address{}
}

// SizeHint returns the number of bytes needed to represent this Address in
// binary.
func (addr Address) SizeHint() int {
	return surge.SizeHint(addr.IP) +
		surge.SizeHintU16
}

// Marshal this Address into binary.
func (addr Address) Marshal(buf []byte, rem int) ([]byte, int, error) {
	buf, rem, err := surge.Marshal(addr.IP, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("marshal ip: %v", err)
	}
	buf, rem, err = surge.MarshalU16(addr.Port, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("marshal port: %v", err)
	}
	return buf, rem, err
}

// Unmarshal from binary into this Address.
func (addr *Address) Unmarshal(buf []byte, rem int) ([]byte, int, error) {
	buf, rem, err := surge.Unmarshal(&addr.IP, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("unmarshal ip: %v", err)
	}
	buf, rem, err = surge.UnmarshalU16(&addr.Port, buf, rem)
	if err != nil {
		return buf, rem, fmt.Errorf("unmarshal port: %v", err)
	}
	return buf, rem, err
}
