// Package netutil provides the syntactic IPv4/domain checks shared by the
// IP matcher and the HTTP classification handler.
package netutil

import (
	"net"
	"net/url"
	"strings"

	"github.com/asaskevich/govalidator"
)

// IsIPv4 reports whether s is a syntactically valid dotted-quad IPv4
// address: four decimal octets 0-255, no leading '+', no extra dots.
func IsIPv4(s string) bool {
	if strings.Count(s, ".") != 3 || strings.ContainsAny(s, "+ \t") {
		return false
	}

	ip := net.ParseIP(s)
	switch {
	case ip == nil:
		return false
	case ip.To4() == nil:
		return false
	default:
		return true
	}
}

// IsDomain reports whether s is a syntactically valid, dotted DNS name.
func IsDomain(s string) bool {
	if !govalidator.IsDNSName(s) {
		return false
	}
	if _, err := url.Parse("http://" + s); err != nil {
		return false
	}
	return strings.Contains(s, ".")
}
