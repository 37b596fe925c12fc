package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// identityFile is the on-disk form of an identity.
type identityFile struct {
	ID   int64  `yaml:"id"`
	Seed string `yaml:"seed"`
}

// peerEntry is one peer in a directory file.
type peerEntry struct {
	ID          int64  `yaml:"id"`
	SignKey     string `yaml:"sign_key"`
	ExchangeKey string `yaml:"exchange_key"`
}

type directoryFile struct {
	Peers []peerEntry `yaml:"peers"`
}

// Load reads an identity file.
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read %s: %w", path, err)
	}
	var f identityFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("identity: parse %s: %w", path, err)
	}
	seed, err := hex.DecodeString(f.Seed)
	if err != nil {
		return nil, fmt.Errorf("identity: decode seed: %w", err)
	}
	return FromSeed(f.ID, seed)
}

// Save writes the identity to path with owner-only permissions.
func (i *Identity) Save(path string) error {
	data, err := yaml.Marshal(identityFile{ID: i.ID, Seed: hex.EncodeToString(i.seed)})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("identity: create dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadDirectory reads a directory file.
func LoadDirectory(path string) (*StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read %s: %w", path, err)
	}
	var f directoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("identity: parse %s: %w", path, err)
	}

	dir := NewStaticDirectory()
	for _, p := range f.Peers {
		keys, err := decodeEntry(p)
		if err != nil {
			return nil, fmt.Errorf("identity: peer %d: %w", p.ID, err)
		}
		dir.Add(p.ID, keys)
	}
	return dir, nil
}

// SaveDirectory writes the peers of a directory to path.
func (d *StaticDirectory) SaveDirectory(path string) error {
	d.mu.RLock()
	f := directoryFile{Peers: make([]peerEntry, 0, len(d.peers))}
	for id, keys := range d.peers {
		f.Peers = append(f.Peers, peerEntry{
			ID:          id,
			SignKey:     hex.EncodeToString(keys.SignKey),
			ExchangeKey: hex.EncodeToString(keys.ExchangeKey),
		})
	}
	d.mu.RUnlock()

	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func decodeEntry(p peerEntry) (PublicKeys, error) {
	sign, err := hex.DecodeString(p.SignKey)
	if err != nil || len(sign) != ed25519.PublicKeySize {
		return PublicKeys{}, fmt.Errorf("invalid sign_key")
	}
	exchange, err := hex.DecodeString(p.ExchangeKey)
	if err != nil || len(exchange) != 32 {
		return PublicKeys{}, fmt.Errorf("invalid exchange_key")
	}
	return PublicKeys{SignKey: ed25519.PublicKey(sign), ExchangeKey: exchange}, nil
}
