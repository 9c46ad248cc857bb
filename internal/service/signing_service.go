package service

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"ergoveritas/config"
	"ergoveritas/internal/core/domain"
	"ergoveritas/internal/core/ports"
	"ergoveritas/pkg/apperror"
)

// KeyIDPrefix is prepended to the truncated public key fingerprint.
const KeyIDPrefix = "ev_"

var (
	// ErrKeyNotConfigured means the key material is absent from configuration.
	ErrKeyNotConfigured = errors.New("ed25519 key not configured")
	// ErrKeyInvalid means the key material is present but unusable.
	ErrKeyInvalid = errors.New("ed25519 key invalid")
)

// DeriveKeyID fingerprints an SPKI-encoded public key: "ev_" + first 8 hex of sha256(DER).
func DeriveKeyID(spkiDER []byte) string {
	sum := sha256.Sum256(spkiDER)
	return KeyIDPrefix + hex.EncodeToString(sum[:])[:8]
}

// GenerateEd25519KeyPair returns a fresh key pair as base64 PKCS#8 and SPKI DER.
func GenerateEd25519KeyPair() (privateDERB64, publicDERB64 string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generating ed25519 key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", "", fmt.Errorf("encoding private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", "", fmt.Errorf("encoding public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(privDER), base64.StdEncoding.EncodeToString(pubDER), nil
}

// ParsePublicKeyDERB64 decodes a base64 SPKI DER Ed25519 public key.
func ParsePublicKeyDERB64(b64 string) (ed25519.PublicKey, []byte, error) {
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decoding public key base64: %v", ErrKeyInvalid, err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parsing SPKI: %v", ErrKeyInvalid, err)
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("%w: public key is %T, not Ed25519", ErrKeyInvalid, parsed)
	}
	return pub, der, nil
}

// VerifyEd25519 checks a base64 signature over payload against a raw public key.
// A malformed signature is reported as not valid.
func VerifyEd25519(pub ed25519.PublicKey, payload []byte, signatureB64 string) bool {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, payload, sig)
}

// Ed25519KeyProvider parses the configured key pair on first use.
// Each key is parsed at most once per provider.
type Ed25519KeyProvider struct {
	privateDERB64 string
	publicDERB64  string

	privOnce sync.Once
	priv     ed25519.PrivateKey
	privErr  error

	pubOnce sync.Once
	pub     ed25519.PublicKey
	pubDER  []byte
	kid     string
	pubErr  error
}

// NewEd25519KeyProvider creates a provider over base64 DER key material.
func NewEd25519KeyProvider(cfg config.Ed25519Config) *Ed25519KeyProvider {
	return &Ed25519KeyProvider{
		privateDERB64: cfg.PrivateKeyDERB64,
		publicDERB64:  cfg.PublicKeyDERB64,
	}
}

// PrivateKey returns the parsed PKCS#8 private key.
func (p *Ed25519KeyProvider) PrivateKey() (ed25519.PrivateKey, error) {
	p.privOnce.Do(func() {
		if strings.TrimSpace(p.privateDERB64) == "" {
			p.privErr = fmt.Errorf("%w: private key", ErrKeyNotConfigured)
			return
		}
		der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(p.privateDERB64))
		if err != nil {
			p.privErr = fmt.Errorf("%w: decoding private key base64: %v", ErrKeyInvalid, err)
			return
		}
		parsed, err := x509.ParsePKCS8PrivateKey(der)
		if err != nil {
			p.privErr = fmt.Errorf("%w: parsing PKCS#8: %v", ErrKeyInvalid, err)
			return
		}
		priv, ok := parsed.(ed25519.PrivateKey)
		if !ok {
			p.privErr = fmt.Errorf("%w: private key is %T, not Ed25519", ErrKeyInvalid, parsed)
			return
		}
		p.priv = priv
	})
	return p.priv, p.privErr
}

// PublicKey returns the raw public key and its SPKI DER encoding.
func (p *Ed25519KeyProvider) PublicKey() (ed25519.PublicKey, []byte, error) {
	p.pubOnce.Do(func() {
		if strings.TrimSpace(p.publicDERB64) == "" {
			p.pubErr = fmt.Errorf("%w: public key", ErrKeyNotConfigured)
			return
		}
		pub, der, err := ParsePublicKeyDERB64(p.publicDERB64)
		if err != nil {
			p.pubErr = err
			return
		}
		p.pub, p.pubDER, p.kid = pub, der, DeriveKeyID(der)
	})
	return p.pub, p.pubDER, p.pubErr
}

// KeyID returns the fingerprint of the configured public key.
func (p *Ed25519KeyProvider) KeyID() (string, error) {
	if _, _, err := p.PublicKey(); err != nil {
		return "", err
	}
	return p.kid, nil
}

// Ed25519Signer implements ports.Signer over an Ed25519KeyProvider.
type Ed25519Signer struct {
	keys *Ed25519KeyProvider
}

// NewEd25519Signer creates a signer backed by keys.
func NewEd25519Signer(keys *Ed25519KeyProvider) *Ed25519Signer {
	return &Ed25519Signer{keys: keys}
}

// KeyID returns the signing key identifier.
func (s *Ed25519Signer) KeyID() (string, error) {
	kid, err := s.keys.KeyID()
	if err != nil {
		return "", keyError(err)
	}
	return kid, nil
}

// Sign returns the std base64 Ed25519 signature over payload. It refuses to
// sign when the configured private and public keys do not belong together.
func (s *Ed25519Signer) Sign(payload []byte) (string, error) {
	priv, err := s.keys.PrivateKey()
	if err != nil {
		return "", keyError(err)
	}
	pub, _, err := s.keys.PublicKey()
	if err != nil {
		return "", keyError(err)
	}
	if !pub.Equal(priv.Public()) {
		return "", keyError(fmt.Errorf("%w: public key does not match private key", ErrKeyInvalid))
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, payload)), nil
}

// Verify checks signatureB64 over payload with the configured public key.
func (s *Ed25519Signer) Verify(payload []byte, signatureB64 string) (bool, error) {
	pub, _, err := s.keys.PublicKey()
	if err != nil {
		return false, keyError(err)
	}
	return VerifyEd25519(pub, payload, signatureB64), nil
}

// PublicKeyInfo exposes the public key in both its SPKI and raw 32-byte forms.
func (s *Ed25519Signer) PublicKeyInfo() (*ports.PublicKeyInfo, error) {
	pub, der, err := s.keys.PublicKey()
	if err != nil {
		return nil, keyError(err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, keyError(fmt.Errorf("%w: raw public key is %d bytes", ErrKeyInvalid, len(pub)))
	}
	kid, _ := s.keys.KeyID()
	return &ports.PublicKeyInfo{
		KID:             kid,
		Alg:             domain.SignatureAlgorithm,
		PublicKeyDERB64: base64.StdEncoding.EncodeToString(der),
		PublicKeyRawB64: base64.StdEncoding.EncodeToString(pub),
	}, nil
}

func keyError(err error) error {
	if errors.Is(err, ErrKeyNotConfigured) {
		return apperror.ErrSigningKeyNotConfigured(err)
	}
	return apperror.ErrSigningKeyInvalid(err)
}
