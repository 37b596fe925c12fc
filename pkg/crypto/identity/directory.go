package identity

import (
	"context"
	"errors"
	"sync"
)

// ErrPeerNotFound is returned when a directory has no entry for a peer.
var ErrPeerNotFound = errors.New("identity: peer not found")

// Directory resolves a peer id to its public keys.
type Directory interface {
	LookupPublicKey(ctx context.Context, peerID int64) (PublicKeys, error)
}

// StaticDirectory is an in-memory Directory.
type StaticDirectory struct {
	mu    sync.RWMutex
	peers map[int64]PublicKeys
}

// NewStaticDirectory creates an empty directory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{peers: make(map[int64]PublicKeys)}
}

// Add publishes the public keys of a peer, replacing any previous entry.
func (d *StaticDirectory) Add(peerID int64, keys PublicKeys) {
	d.mu.Lock()
	d.peers[peerID] = keys
	d.mu.Unlock()
}

// AddIdentity publishes the public keys of a local identity.
func (d *StaticDirectory) AddIdentity(id *Identity) {
	d.Add(id.ID, id.Public())
}

// Remove deletes a peer.
func (d *StaticDirectory) Remove(peerID int64) {
	d.mu.Lock()
	delete(d.peers, peerID)
	d.mu.Unlock()
}

// Len returns the number of peers.
func (d *StaticDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

// LookupPublicKey implements Directory.
func (d *StaticDirectory) LookupPublicKey(ctx context.Context, peerID int64) (PublicKeys, error) {
	if err := ctx.Err(); err != nil {
		return PublicKeys{}, err
	}
	d.mu.RLock()
	keys, ok := d.peers[peerID]
	d.mu.RUnlock()
	if !ok {
		return PublicKeys{}, ErrPeerNotFound
	}
	return keys, nil
}
