package server

import (
	"fmt"
	"sync"

	"fieldwatch-agent/pkg/identitykey"
)

// containerIDs hands out stable, opaque string ids for identitykey.Keys so
// that a container identity (a Go pointer, meaningless across a process
// boundary) can round-trip through JSON and back into a path parameter —
// the HTTP replacement for a JDI object reference. An id is minted the
// first time a container's Key is serialized into a response and resolved
// back to that Key by the {id}-scoped routes.
type containerIDs struct {
	mu     sync.Mutex
	toID   map[identitykey.Key]string
	toKey  map[string]identitykey.Key
	nextID uint64
}

func newContainerIDs() *containerIDs {
	return &containerIDs{
		toID:  make(map[identitykey.Key]string),
		toKey: make(map[string]identitykey.Key),
	}
}

// idFor returns the stable id for key, minting one if key has not been
// seen before.
func (c *containerIDs) idFor(key identitykey.Key) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.toID[key]; ok {
		return id
	}
	c.nextID++
	id := fmt.Sprintf("c%d", c.nextID)
	c.toID[key] = id
	c.toKey[id] = key
	return id
}

// keyFor resolves an id minted by idFor back into its identitykey.Key.
func (c *containerIDs) keyFor(id string) (identitykey.Key, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok := c.toKey[id]
	return key, ok
}
