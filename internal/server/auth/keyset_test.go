package auth

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeySet_GreatestKIDIsActive(t *testing.T) {
	k1, k2 := rsaKeys(t)
	ks, err := NewKeySet([]SigningKey{{KID: "b", PrivateKey: k2}, {KID: "a", PrivateKey: k1}}, "")
	require.NoError(t, err)

	kid, key := ks.Active()
	assert.Equal(t, "b", kid)
	assert.Same(t, k2, key)
	assert.Equal(t, []string{"a", "b"}, ks.KIDs())
}

func TestNewKeySet_Errors(t *testing.T) {
	k1, _ := rsaKeys(t)

	_, err := NewKeySet(nil, "")
	require.ErrorContains(t, err, "no keys")

	_, err = NewKeySet([]SigningKey{{KID: "a", PrivateKey: k1}, {KID: "a", PrivateKey: k1}}, "")
	require.ErrorContains(t, err, "duplicate kid")

	_, err = NewKeySet([]SigningKey{{KID: "a", PrivateKey: k1}}, "zzz")
	require.ErrorContains(t, err, "not loaded")

	_, err = NewKeySet([]SigningKey{{KID: "", PrivateKey: k1}}, "")
	require.Error(t, err)
}

func TestKeySet_PublicKey(t *testing.T) {
	k1, _ := rsaKeys(t)
	ks, err := NewKeySet([]SigningKey{{KID: "a", PrivateKey: k1}}, "")
	require.NoError(t, err)

	pub, ok := ks.PublicKey("a")
	require.True(t, ok)
	assert.Equal(t, &k1.PublicKey, pub)

	_, ok = ks.PublicKey("missing")
	assert.False(t, ok)
}

func TestJWKS_Shape(t *testing.T) {
	k1, k2 := rsaKeys(t)
	ks, err := NewKeySet([]SigningKey{{KID: "2025-01", PrivateKey: k2}, {KID: "2024-01", PrivateKey: k1}}, "")
	require.NoError(t, err)

	set := ks.JWKS()
	require.Len(t, set.Keys, 2)
	assert.Equal(t, "2024-01", set.Keys[0].Kid)

	jwk := set.Keys[0]
	assert.Equal(t, "RSA", jwk.Kty)
	assert.Equal(t, "sig", jwk.Use)
	assert.Equal(t, "RS256", jwk.Alg)
	assert.Equal(t, "AQAB", jwk.E)

	n, err := base64.RawURLEncoding.DecodeString(jwk.N)
	require.NoError(t, err)
	assert.Equal(t, 0, new(big.Int).SetBytes(n).Cmp(k1.N))
}

func TestPEMRoundTrip(t *testing.T) {
	k1, _ := rsaKeys(t)

	pkcs8, err := EncodePrivateKeyPEM(k1)
	require.NoError(t, err)
	got, err := ParsePrivateKeyPEM(pkcs8)
	require.NoError(t, err)
	assert.True(t, k1.Equal(got))

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k1)})
	got, err = ParsePrivateKeyPEM(pkcs1)
	require.NoError(t, err)
	assert.True(t, k1.Equal(got))

	_, err = ParsePrivateKeyPEM([]byte("garbage"))
	require.Error(t, err)
}
