package node

import "fmt"

// Config is the bootstrap configuration: listen address, port, and an
// optional set of seed peers to register with at startup.
type Config struct {
	Host      string
	Port      int
	SeedPeers []string
}

// Address returns the "host:port" form used as this node's own
// identity.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
