package service

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"ergoveritas/config"
	"ergoveritas/pkg/canonical"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload() canonical.Payload {
	return canonical.Build(
		"0d5c3c62-6f0e-4f57-9f39-3b9c8f5a1d10",
		"sha256",
		"5e3a1b7c9d0f2e4a6b8c0d1e3f5a7b9c1d3e5f7a9b0c2d4e6f8a0b1c3d5e7f90",
		time.Date(2025, 5, 6, 7, 8, 9, 10_000_000, time.UTC),
		"public",
	)
}

func TestDeriveKeyID(t *testing.T) {
	der := []byte("spki-der-bytes")
	sum := sha256.Sum256(der)

	kid := DeriveKeyID(der)
	assert.Equal(t, "ev_"+hex.EncodeToString(sum[:])[:8], kid)
	assert.Len(t, kid, 11)
}

func TestEd25519Signer_SignAndVerify(t *testing.T) {
	signer, _ := newTestSigner(t)
	payload := testPayload().Bytes()

	sig, err := signer.Sign(payload)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	assert.Len(t, raw, ed25519.SignatureSize)

	ok, err := signer.Verify(payload, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEd25519Signer_DetectsSingleFieldTamper(t *testing.T) {
	signer, _ := newTestSigner(t)
	original := testPayload()

	sig, err := signer.Sign(original.Bytes())
	require.NoError(t, err)

	mutations := map[string]func(p *canonical.Payload){
		"receipt_id":     func(p *canonical.Payload) { p.ReceiptID = "0d5c3c62-6f0e-4f57-9f39-3b9c8f5a1d11" },
		"hash_algorithm": func(p *canonical.Payload) { p.HashAlgorithm = "sha512" },
		"hash_value":     func(p *canonical.Payload) { p.HashValue = "6" + p.HashValue[1:] },
		"created_at":     func(p *canonical.Payload) { p.CreatedAt = "2025-05-06T07:08:09.011Z" },
		"visibility":     func(p *canonical.Payload) { p.Visibility = "private" },
	}

	for field, mutate := range mutations {
		t.Run(field, func(t *testing.T) {
			tampered := original
			mutate(&tampered)

			ok, err := signer.Verify(tampered.Bytes(), sig)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestEd25519Signer_PublicKeyInfo_RawKeyVerifies(t *testing.T) {
	signer, cfg := newTestSigner(t)

	info, err := signer.PublicKeyInfo()
	require.NoError(t, err)
	assert.Equal(t, "Ed25519", info.Alg)
	assert.Equal(t, cfg.PublicKeyDERB64, info.PublicKeyDERB64)

	der, err := base64.StdEncoding.DecodeString(info.PublicKeyDERB64)
	require.NoError(t, err)
	assert.Equal(t, DeriveKeyID(der), info.KID)

	raw, err := base64.StdEncoding.DecodeString(info.PublicKeyRawB64)
	require.NoError(t, err)
	require.Len(t, raw, ed25519.PublicKeySize)

	payload := testPayload().Bytes()
	sig, err := signer.Sign(payload)
	require.NoError(t, err)
	assert.True(t, VerifyEd25519(ed25519.PublicKey(raw), payload, sig))
}

func TestEd25519Signer_NotConfigured(t *testing.T) {
	signer := NewEd25519Signer(NewEd25519KeyProvider(config.Ed25519Config{}))

	_, err := signer.Sign([]byte("x"))
	assertAppError(t, err, "KEY_001")
	assert.ErrorIs(t, err, ErrKeyNotConfigured)

	_, err = signer.KeyID()
	assertAppError(t, err, "KEY_001")

	_, err = signer.PublicKeyInfo()
	assertAppError(t, err, "KEY_001")
}

func TestEd25519Signer_OnlyPublicKeyConfigured(t *testing.T) {
	_, cfg := newTestSigner(t)
	signer := NewEd25519Signer(NewEd25519KeyProvider(config.Ed25519Config{PublicKeyDERB64: cfg.PublicKeyDERB64}))

	_, err := signer.Sign([]byte("x"))
	assertAppError(t, err, "KEY_001")

	info, err := signer.PublicKeyInfo()
	require.NoError(t, err)
	assert.NotEmpty(t, info.KID)
}

func TestEd25519Signer_MalformedKeys(t *testing.T) {
	_, good := newTestSigner(t)

	tests := []struct {
		name string
		cfg  config.Ed25519Config
	}{
		{"private not base64", config.Ed25519Config{PrivateKeyDERB64: "%%%", PublicKeyDERB64: good.PublicKeyDERB64}},
		{"private not pkcs8", config.Ed25519Config{PrivateKeyDERB64: base64.StdEncoding.EncodeToString([]byte("junk")), PublicKeyDERB64: good.PublicKeyDERB64}},
		{"public not spki", config.Ed25519Config{PrivateKeyDERB64: good.PrivateKeyDERB64, PublicKeyDERB64: base64.StdEncoding.EncodeToString([]byte("junk"))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer := NewEd25519Signer(NewEd25519KeyProvider(tt.cfg))
			_, err := signer.Sign([]byte("x"))
			assertAppError(t, err, "KEY_002")
			assert.ErrorIs(t, err, ErrKeyInvalid)
		})
	}
}

func TestEd25519Signer_MismatchedPair(t *testing.T) {
	_, a := newTestSigner(t)
	_, b := newTestSigner(t)

	signer := NewEd25519Signer(NewEd25519KeyProvider(config.Ed25519Config{
		PrivateKeyDERB64: a.PrivateKeyDERB64,
		PublicKeyDERB64:  b.PublicKeyDERB64,
	}))

	_, err := signer.Sign([]byte("x"))
	assertAppError(t, err, "KEY_002")
}

func TestEd25519KeyProvider_ConcurrentFirstUse(t *testing.T) {
	_, cfg := newTestSigner(t)
	provider := NewEd25519KeyProvider(cfg)

	var wg sync.WaitGroup
	keys := make([]ed25519.PrivateKey, 32)
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := provider.PrivateKey()
			assert.NoError(t, err)
			keys[i] = k
		}(i)
	}
	wg.Wait()

	for _, k := range keys[1:] {
		assert.True(t, keys[0].Equal(k))
	}
}

func TestVerifyEd25519_MalformedSignature(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	assert.False(t, VerifyEd25519(pub, []byte("x"), "not base64!"))
	assert.False(t, VerifyEd25519(pub, []byte("x"), base64.StdEncoding.EncodeToString([]byte("short"))))
}
