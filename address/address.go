// Package address defines the immutable endpoint identifier used by netbus.
package address

import (
	"net"
	"strconv"
	"strings"

	"github.com/vinayprograms/netbus/errors"
)

// MasterLiteral is the well-known master endpoint heartbeats are sent to.
const MasterLiteral = "26.88.68.147:28960"

var master = MustParse(MasterLiteral)

// Master returns the well-known master endpoint.
func Master() Address {
	return master
}

// Address identifies a remote endpoint in host:port form.
// The zero value is not a valid endpoint. Addresses compare with == and
// can be used as map keys; equality follows the normalized text.
type Address struct {
	text string
	host string
	port uint16
}

// Parse parses a host:port endpoint. IPv6 hosts must be bracketed.
func Parse(s string) (Address, error) {
	raw := strings.TrimSpace(s)
	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		return Address{}, errors.Wrap(err, errors.CodeInvalidAddress, "parse address", errors.WithAddress(raw))
	}
	if host == "" {
		return Address{}, errors.New(errors.CodeInvalidAddress, "missing host", errors.WithAddress(raw))
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return Address{}, errors.Newf(errors.CodeInvalidAddress, "invalid port %q in %q", portStr, raw)
	}

	host = strings.ToLower(host)
	return Address{
		text: net.JoinHostPort(host, strconv.FormatUint(port, 10)),
		host: host,
		port: uint16(port),
	}, nil
}

// MustParse is Parse for literals known to be valid. It panics otherwise.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromUDP converts a resolved UDP address.
func FromUDP(ua *net.UDPAddr) Address {
	if ua == nil {
		return Address{}
	}
	a, err := Parse(ua.String())
	if err != nil {
		return Address{}
	}
	return a
}

// String returns the normalized host:port text.
func (a Address) String() string {
	return a.text
}

// Host returns the host part.
func (a Address) Host() string {
	return a.host
}

// Port returns the port part.
func (a Address) Port() uint16 {
	return a.port
}

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool {
	return a.text == ""
}
