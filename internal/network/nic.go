package network

import (
	"fmt"
	"strings"

	"github.com/vishvananda/netlink"
)

// ValidateNIC confirms the named interface exists in the current network
// namespace. The error lists the interfaces that do exist, since a typo'd
// NIC name is the most common way to fail here.
func ValidateNIC(name string) error {
	if _, err := netlink.LinkByName(name); err != nil {
		names, listErr := interfaceNames()
		if listErr != nil {
			return fmt.Errorf("interface %s not found: %w", name, err)
		}
		return fmt.Errorf("interface %s not found (available: %s): %w", name, strings.Join(names, ", "), err)
	}
	return nil
}

// interfaceNames returns the names of all links in the current namespace.
func interfaceNames() ([]string, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	names := make([]string, 0, len(links))
	for _, link := range links {
		names = append(names, link.Attrs().Name)
	}
	return names, nil
}
