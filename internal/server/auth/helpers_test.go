package auth

import (
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authhub/internal/clock"
)

var (
	keysOnce sync.Once
	testKeys [2]*rsa.PrivateKey
	keysErr  error
)

// rsaKeys returns two RSA keys shared by every test in the package.
func rsaKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keysOnce.Do(func() {
		for i := range testKeys {
			testKeys[i], keysErr = GenerateKey(2048)
			if keysErr != nil {
				return
			}
		}
	})
	if keysErr != nil {
		t.Fatalf("generate key: %v", keysErr)
	}
	return testKeys[0], testKeys[1]
}

var epoch = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestCodec(t *testing.T, active string) (*Codec, *clock.Fake) {
	t.Helper()
	k1, k2 := rsaKeys(t)
	ks, err := NewKeySet([]SigningKey{{KID: "2024-01", PrivateKey: k1}, {KID: "2025-01", PrivateKey: k2}}, active)
	if err != nil {
		t.Fatalf("NewKeySet: %v", err)
	}
	clk := clock.NewFake(epoch)
	return NewCodec(ks, "authhub-test", clk), clk
}
