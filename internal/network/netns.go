package network

import (
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netns"
)

// NetnsManager pins the calling goroutine to a target network namespace so
// that netlink queries and every child process spawned during the run act on
// that namespace instead of the host's.
type NetnsManager struct {
	log logrus.FieldLogger
}

// NewNetnsManager creates a new network namespace manager.
func NewNetnsManager(log logrus.FieldLogger) *NetnsManager {
	return &NetnsManager{
		log: log.WithField("package", "network.netns"),
	}
}

// RunInNamespace executes fn with the calling OS thread switched to the
// namespace at nsPath, restoring the original namespace afterwards. The
// thread stays locked for the whole call, so fn may block for as long as an
// impairment run lasts.
func (n *NetnsManager) RunInNamespace(nsPath string, fn func() error) error {
	if _, err := os.Stat(nsPath); os.IsNotExist(err) {
		return fmt.Errorf("namespace path %s does not exist: %w", nsPath, err)
	}

	n.log.WithField("namespace", nsPath).Debug("Entering network namespace")

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	originalNs, err := netns.Get()
	if err != nil {
		return fmt.Errorf("failed to get current namespace: %w", err)
	}
	defer n.closeHandle(originalNs, "original")

	targetNs, err := netns.GetFromPath(nsPath)
	if err != nil {
		return fmt.Errorf("failed to open namespace %s: %w", nsPath, err)
	}

	if err := netns.Set(targetNs); err != nil {
		n.closeHandle(targetNs, "target")
		return fmt.Errorf("failed to enter namespace %s: %w", nsPath, err)
	}
	n.closeHandle(targetNs, "target")

	fnErr := n.runProtected(fn)

	if err := netns.Set(originalNs); err != nil {
		if fnErr != nil {
			return fmt.Errorf("failed to restore original namespace: %w (after: %w)", err, fnErr)
		}
		return fmt.Errorf("failed to restore original namespace: %w", err)
	}

	n.log.WithField("namespace", nsPath).Debug("Restored original network namespace")
	return fnErr
}

// runProtected converts a panic inside fn into an error so the namespace is
// always restored before unwinding.
func (n *NetnsManager) runProtected(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in namespace function: %v", r)
		}
	}()
	return fn()
}

func (n *NetnsManager) closeHandle(handle netns.NsHandle, which string) {
	if closeErr := handle.Close(); closeErr != nil {
		n.log.WithError(closeErr).WithField("handle", which).Debug("Failed to close namespace handle")
	}
}
