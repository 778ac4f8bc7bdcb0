package network

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/netimpair/netimpair/internal/types"
)

// DefaultIncludeSelectors returns the match-everything selector set used when
// no include selectors are given: all IPv4 and all IPv6 traffic.
func DefaultIncludeSelectors() []string {
	return []string{"src=0/0", "src=::/0"}
}

// TranslateSelectors converts flow selectors into u32 match-clause fragments,
// one list for IPv4 filters and one for IPv6 filters. A malformed selector is
// logged and skipped; it never aborts translation of the remaining selectors.
//
// Each selector is a comma-separated list of key=value tokens. src and dst
// tokens are routed by address family: values containing "::" go to the IPv6
// fragment, everything else to the IPv4 fragment. All other keys apply to
// both families. sport and dport additionally get the 0xffff port mask.
// A selector anchored to one family through its src/dst tokens emits a
// fragment for that family only.
func TranslateSelectors(log logrus.FieldLogger, selectors []string) (ipv4, ipv6 []string) {
	for _, selector := range selectors {
		v4, v6, err := translateSelector(selector)
		if err != nil {
			log.WithFields(logrus.Fields{
				"selector": selector,
				"error":    err,
			}).Warn("Skipping malformed flow selector")
			continue
		}

		if v4 != "" {
			ipv4 = append(ipv4, v4)
		}
		if v6 != "" {
			ipv6 = append(ipv6, v6)
		}
	}

	return ipv4, ipv6
}

// translateSelector builds the IPv4 and IPv6 match fragments for a single
// selector. Any token missing its key=value shape poisons the whole selector.
func translateSelector(selector string) (ipv4, ipv6 string, err error) {
	var v4, v6 strings.Builder
	var hasAddress, v4Addressed, v6Addressed bool

	for _, token := range strings.Split(selector, ",") {
		key, value, found := strings.Cut(token, "=")
		if !found || key == "" {
			return "", "", fmt.Errorf("%w: token %q", types.ErrMalformedSelector, token)
		}

		switch key {
		case "src", "dst":
			hasAddress = true
			if strings.Contains(value, "::") {
				v6Addressed = true
				fmt.Fprintf(&v6, "match ip6 %s %s ", key, value)
			} else {
				v4Addressed = true
				fmt.Fprintf(&v4, "match ip %s %s ", key, value)
			}
		default:
			fmt.Fprintf(&v4, "match ip %s %s ", key, value)
			fmt.Fprintf(&v6, "match ip6 %s %s ", key, value)
		}

		if key == "sport" || key == "dport" {
			v4.WriteString("0xffff ")
			v6.WriteString("0xffff ")
		}
	}

	// A selector that names an address in one family matches that family
	// only; its generic tokens must not leak a filter into the other one.
	ipv4, ipv6 = v4.String(), v6.String()
	if hasAddress && !v4Addressed {
		ipv4 = ""
	}
	if hasAddress && !v6Addressed {
		ipv6 = ""
	}

	return ipv4, ipv6, nil
}
