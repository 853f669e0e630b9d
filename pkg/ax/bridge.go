package ax

import (
	"errors"
	"sync"
)

// Provider constructs a live Application bound to the target app's
// accessibility tree. Platform bridge packages register themselves at
// init, database/sql driver style, so this package stays free of
// platform build constraints.
type Provider func() (Application, error)

var (
	providerMu sync.Mutex
	provider   Provider
)

// ErrNoProvider is returned by Connect when no platform bridge was
// compiled in.
var ErrNoProvider = errors.New("ax: no accessibility bridge registered")

// RegisterProvider installs the platform bridge. The last registration
// wins; passing nil clears it.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// Connect returns a live Application from the registered bridge.
func Connect() (Application, error) {
	providerMu.Lock()
	p := provider
	providerMu.Unlock()
	if p == nil {
		return nil, ErrNoProvider
	}
	return p()
}
