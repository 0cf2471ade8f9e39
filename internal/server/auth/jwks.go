package auth

import (
	"encoding/base64"
	"math/big"
)

// JWK is an RSA public key in RFC 7517 form.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSet is the document served at /auth/jwks.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// JWKS lists every verification key, ordered by kid.
func (ks *KeySet) JWKS() JWKSet {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	set := JWKSet{Keys: make([]JWK, 0, len(ks.order))}
	for _, kid := range ks.order {
		pub := ks.keys[kid].PublicKey
		set.Keys = append(set.Keys, JWK{
			Kty: "RSA",
			Use: "sig",
			Alg: SigningMethod.Alg(),
			Kid: kid,
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		})
	}
	return set
}
