package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sort"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// SigningKey is an RSA private key and the kid it is published under.
type SigningKey struct {
	KID        string
	PrivateKey *rsa.PrivateKey
}

// KeySet holds every key that may verify tokens and names the single key
// that signs new ones. Keys can be replaced at runtime for rollover.
type KeySet struct {
	mu     sync.RWMutex
	keys   map[string]*rsa.PrivateKey
	order  []string
	active string
}

// NewKeySet builds a KeySet. activeKID selects the signing key; when empty
// the lexicographically greatest kid signs.
func NewKeySet(keys []SigningKey, activeKID string) (*KeySet, error) {
	ks := &KeySet{}
	if err := ks.Replace(keys, activeKID); err != nil {
		return nil, err
	}
	return ks, nil
}

// Replace swaps the key material atomically. Tokens signed by a kid that is
// no longer present stop verifying.
func (ks *KeySet) Replace(keys []SigningKey, activeKID string) error {
	if len(keys) == 0 {
		return fmt.Errorf("key set: no keys")
	}

	m := make(map[string]*rsa.PrivateKey, len(keys))
	order := make([]string, 0, len(keys))
	for _, k := range keys {
		if k.KID == "" || k.PrivateKey == nil {
			return fmt.Errorf("key set: key without kid or material")
		}
		if _, dup := m[k.KID]; dup {
			return fmt.Errorf("key set: duplicate kid %q", k.KID)
		}
		m[k.KID] = k.PrivateKey
		order = append(order, k.KID)
	}
	sort.Strings(order)

	if activeKID == "" {
		activeKID = order[len(order)-1]
	}
	if _, ok := m[activeKID]; !ok {
		return fmt.Errorf("key set: active kid %q not loaded", activeKID)
	}

	ks.mu.Lock()
	ks.keys, ks.order, ks.active = m, order, activeKID
	ks.mu.Unlock()
	return nil
}

// Active returns the signing kid and key.
func (ks *KeySet) Active() (string, *rsa.PrivateKey) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.active, ks.keys[ks.active]
}

// PublicKey returns the verification key for kid.
func (ks *KeySet) PublicKey(kid string) (*rsa.PublicKey, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	k, ok := ks.keys[kid]
	if !ok {
		return nil, false
	}
	return &k.PublicKey, true
}

// KIDs lists the loaded kids in ascending order.
func (ks *KeySet) KIDs() []string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return append([]string(nil), ks.order...)
}

// GenerateKey creates a fresh RSA private key.
func GenerateKey(bits int) (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, bits)
}

// ParsePrivateKeyPEM decodes a PKCS#1 or PKCS#8 RSA private key.
func ParsePrivateKeyPEM(b []byte) (*rsa.PrivateKey, error) {
	return jwt.ParseRSAPrivateKeyFromPEM(b)
}

// EncodePrivateKeyPEM encodes key as a PKCS#8 PEM block.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
