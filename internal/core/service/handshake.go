package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/yndnr/gedis-go/internal/core/domain"
	"github.com/yndnr/gedis-go/pkg/crypto/identity"
	"github.com/yndnr/gedis-go/pkg/token"
)

// HandshakeConfig holds configuration for HandshakeService.
type HandshakeConfig struct {
	// MaxClockSkew is how far a signed timestamp may be from the server
	// clock (default: 60s).
	MaxClockSkew time.Duration

	// KeyCacheTTL is how long directory lookups are cached (default: 5m).
	KeyCacheTTL time.Duration

	// KeyCacheSize is the maximum number of cached peers (default: 1,000).
	KeyCacheSize int
}

// DefaultHandshakeConfig returns default configuration.
func DefaultHandshakeConfig() *HandshakeConfig {
	return &HandshakeConfig{
		MaxClockSkew: 60 * time.Second,
		KeyCacheTTL:  5 * time.Minute,
		KeyCacheSize: 1000,
	}
}

// HandshakeService verifies AUTH tokens sent by clients.
type HandshakeService struct {
	self    *identity.Identity
	dir     identity.Directory
	skew    time.Duration
	keys    *ttlCache[int64, identity.PublicKeys]
	replays *ttlCache[string, struct{}] // keyed by token fingerprint
	now     func() time.Time
}

// NewHandshakeService creates a HandshakeService for the server identity.
func NewHandshakeService(self *identity.Identity, dir identity.Directory, cfg *HandshakeConfig) *HandshakeService {
	if cfg == nil {
		cfg = DefaultHandshakeConfig()
	}
	if cfg.MaxClockSkew <= 0 {
		cfg.MaxClockSkew = 60 * time.Second
	}

	return &HandshakeService{
		self:    self,
		dir:     dir,
		skew:    cfg.MaxClockSkew,
		keys:    newTTLCache[int64, identity.PublicKeys](cfg.KeyCacheSize, cfg.KeyCacheTTL),
		replays: newTTLCache[string, struct{}](0, 2*cfg.MaxClockSkew),
		now:     time.Now,
	}
}

// ParseAuthPayload decodes the argument of the AUTH command.
func ParseAuthPayload(b []byte) (domain.AuthToken, error) {
	var tok domain.AuthToken
	if err := json.Unmarshal(b, &tok); err != nil {
		return domain.AuthToken{}, domain.ErrMalformedToken.WithCause(err)
	}
	if tok.PeerID == 0 || tok.EncryptedData == "" {
		return domain.AuthToken{}, domain.ErrMalformedToken
	}
	return tok, nil
}

// Verify checks a token and returns the authenticated peer id.
//
// The token must decrypt with the key shared between the server and the
// claimed peer, carry a valid signature of that peer, hold a timestamp
// within MaxClockSkew, and not have been seen before.
func (s *HandshakeService) Verify(ctx context.Context, tok domain.AuthToken) (int64, error) {
	if tok.PeerID == 0 || tok.EncryptedData == "" {
		return 0, domain.ErrMalformedToken
	}
	sealed, err := hex.DecodeString(tok.EncryptedData)
	if err != nil {
		return 0, domain.ErrMalformedToken.WithCause(err)
	}

	fp := token.Fingerprint(sealed)
	if _, seen := s.replays.Get(fp); seen {
		return 0, domain.ErrHandshakeRejected.WithDetails("token replayed")
	}

	keys, err := s.lookup(ctx, tok.PeerID)
	if err != nil {
		return 0, err
	}

	c, err := s.self.SharedCipher(keys)
	if err != nil {
		return 0, domain.ErrHandshakeRejected.WithCause(err)
	}
	signed, err := c.Decrypt(sealed, nil)
	if err != nil {
		return 0, domain.ErrHandshakeRejected.WithDetails("decrypt").WithCause(err)
	}
	msg, err := identity.Open(keys.SignKey, signed)
	if err != nil {
		return 0, domain.ErrHandshakeRejected.WithDetails("signature").WithCause(err)
	}

	ts, err := strconv.ParseInt(string(msg), 10, 64)
	if err != nil {
		return 0, domain.ErrMalformedToken.WithCause(err)
	}
	diff := s.now().Sub(time.Unix(ts, 0))
	if diff < 0 {
		diff = -diff
	}
	if diff > s.skew {
		return 0, domain.ErrStaleToken
	}

	if !s.replays.SetIfAbsent(fp, struct{}{}) {
		return 0, domain.ErrHandshakeRejected.WithDetails("token replayed")
	}
	return tok.PeerID, nil
}

// Forget drops the cached public keys of a peer.
func (s *HandshakeService) Forget(peerID int64) {
	s.keys.Delete(peerID)
}

func (s *HandshakeService) lookup(ctx context.Context, peerID int64) (identity.PublicKeys, error) {
	if keys, ok := s.keys.Get(peerID); ok {
		return keys, nil
	}
	keys, err := s.dir.LookupPublicKey(ctx, peerID)
	if err != nil {
		if errors.Is(err, identity.ErrPeerNotFound) {
			return identity.PublicKeys{}, domain.ErrUnknownPeer.WithCause(err)
		}
		return identity.PublicKeys{}, domain.Internalf("directory lookup failed").WithCause(err)
	}
	s.keys.Set(peerID, keys)
	return keys, nil
}

// IssueToken builds an AUTH token from self to the peer owning server.
func IssueToken(self *identity.Identity, server identity.PublicKeys, now time.Time) (domain.AuthToken, error) {
	c, err := self.SharedCipher(server)
	if err != nil {
		return domain.AuthToken{}, err
	}
	signed := self.Sign([]byte(strconv.FormatInt(now.Unix(), 10)))
	sealed, err := c.Encrypt(signed, nil)
	if err != nil {
		return domain.AuthToken{}, err
	}
	return domain.AuthToken{
		PeerID:        self.ID,
		EncryptedData: hex.EncodeToString(sealed),
	}, nil
}

// EncodeAuthPayload encodes a token as the argument of the AUTH command.
func EncodeAuthPayload(tok domain.AuthToken) ([]byte, error) {
	return json.Marshal(tok)
}
