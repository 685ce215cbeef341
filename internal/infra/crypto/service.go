package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	SeedSize         = ed25519.SeedSize
	PublicKeySize    = ed25519.PublicKeySize
	SignatureSize    = ed25519.SignatureSize
	ExchangeKeySize  = curve25519.ScalarSize
	SymmetricKeySize = chacha20poly1305.KeySize
	NonceSize        = chacha20poly1305.NonceSize
)

// HKDF domain-separation labels. These are wire constants: the exchange
// key derived from a signing seed must be reproducible by any peer
// implementation, or encryption-key discovery breaks.
const (
	exchangeDeriveSalt = "gns-x25519-derive"
	exchangeDeriveInfo = "x25519"
	messageKeySalt     = "gns-message-key"
)

// ErrDecryptionFailed reports an authentication failure during decrypt.
// No plaintext is ever returned alongside it.
var ErrDecryptionFailed = errors.New("decryption failed")

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// GenerateSigningKeypair mints a fresh ed25519 identity. The returned
// secret is the 32-byte seed. Failure means the entropy source is
// broken and is not retryable.
func (s *Service) GenerateSigningKeypair() (*Secret, []byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		zeroBytes(seed)
		return nil, nil, fmt.Errorf("entropy source failure: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := append([]byte(nil), priv.Public().(ed25519.PublicKey)...)
	zeroBytes(priv)
	return &Secret{b: seed}, pub, nil
}

// PublicKeyFromSeed derives the verifying key for a stored seed, used to
// sanity-check imported keypairs.
func (s *Service) PublicKeyFromSeed(seed *Secret) ([]byte, error) {
	if seed.Len() != SeedSize {
		return nil, errors.New("invalid signing seed length")
	}
	priv := ed25519.NewKeyFromSeed(seed.Bytes())
	pub := append([]byte(nil), priv.Public().(ed25519.PublicKey)...)
	zeroBytes(priv)
	return pub, nil
}

// Sign produces an ed25519 signature over message.
func (s *Service) Sign(seed *Secret, message []byte) ([]byte, error) {
	if seed.Len() != SeedSize {
		return nil, errors.New("invalid signing seed length")
	}
	priv := ed25519.NewKeyFromSeed(seed.Bytes())
	sig := ed25519.Sign(priv, message)
	zeroBytes(priv)
	return sig, nil
}

// SignHex signs and hex-encodes, the form every chain record stores.
func (s *Service) SignHex(seed *Secret, message []byte) (string, error) {
	sig, err := s.Sign(seed, message)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// Verify reports whether sig is a valid signature over message. It is
// called on untrusted network data, so any malformed input yields false
// rather than an error.
func (s *Service) Verify(publicKey, message, sig []byte) bool {
	if len(publicKey) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, sig)
}

// VerifyHex verifies a hex-encoded key and signature.
func (s *Service) VerifyHex(publicKeyHex string, message []byte, sigHex string) bool {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	return s.Verify(pub, message, sig)
}

// DeriveExchangeKeypair deterministically derives the X25519 keypair
// from a signing seed. The same seed always yields the same exchange
// key.
func (s *Service) DeriveExchangeKeypair(seed *Secret) (*Secret, []byte, error) {
	if seed.Len() != SeedSize {
		return nil, nil, errors.New("invalid signing seed length")
	}
	kdf := hkdf.New(sha256.New, seed.Bytes(), []byte(exchangeDeriveSalt), []byte(exchangeDeriveInfo))
	priv := make([]byte, ExchangeKeySize)
	if _, err := io.ReadFull(kdf, priv); err != nil {
		zeroBytes(priv)
		return nil, nil, fmt.Errorf("hkdf expand: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		zeroBytes(priv)
		return nil, nil, fmt.Errorf("derive exchange public key: %w", err)
	}
	return &Secret{b: priv}, pub, nil
}

// GenerateExchangeKeypair mints an ephemeral X25519 keypair.
func (s *Service) GenerateExchangeKeypair() (*Secret, []byte, error) {
	priv := make([]byte, ExchangeKeySize)
	if _, err := io.ReadFull(rand.Reader, priv); err != nil {
		zeroBytes(priv)
		return nil, nil, fmt.Errorf("entropy source failure: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		zeroBytes(priv)
		return nil, nil, err
	}
	return &Secret{b: priv}, pub, nil
}

// KeyExchange computes the X25519 shared secret. Symmetric:
// KeyExchange(a, B) == KeyExchange(b, A).
func (s *Service) KeyExchange(myPrivate *Secret, theirPublic []byte) (*Secret, error) {
	if myPrivate.Len() != ExchangeKeySize {
		return nil, errors.New("invalid exchange private key length")
	}
	if len(theirPublic) != ExchangeKeySize {
		return nil, errors.New("invalid exchange public key length")
	}
	shared, err := curve25519.X25519(myPrivate.Bytes(), theirPublic)
	if err != nil {
		return nil, fmt.Errorf("key exchange: %w", err)
	}
	return &Secret{b: shared}, nil
}

// DeriveSymmetricKey expands a shared secret into a symmetric key bound
// to a context label. Deterministic.
func (s *Service) DeriveSymmetricKey(shared *Secret, contextLabel string) (*Secret, error) {
	if shared.Len() == 0 {
		return nil, errors.New("empty shared secret")
	}
	kdf := hkdf.New(sha256.New, shared.Bytes(), []byte(messageKeySalt), []byte(contextLabel))
	key := make([]byte, SymmetricKeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		zeroBytes(key)
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return &Secret{b: key}, nil
}

// Encrypt seals plaintext with ChaCha20-Poly1305 under a fresh random
// nonce.
func (s *Service) Encrypt(key *Secret, plaintext []byte) (nonce, ciphertext []byte, err error) {
	if key.Len() != SymmetricKeySize {
		return nil, nil, errors.New("invalid symmetric key length")
	}
	aead, err := chacha20poly1305.New(key.Bytes())
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("entropy source failure: %w", err)
	}
	return nonce, aead.Seal(nil, nonce, plaintext, nil), nil
}

// Decrypt opens a sealed message. Any authentication failure, including
// a single-bit tamper, returns ErrDecryptionFailed and no plaintext.
func (s *Service) Decrypt(key *Secret, nonce, ciphertext []byte) ([]byte, error) {
	if key.Len() != SymmetricKeySize {
		return nil, errors.New("invalid symmetric key length")
	}
	if len(nonce) != NonceSize {
		return nil, errors.New("invalid nonce length")
	}
	aead, err := chacha20poly1305.New(key.Bytes())
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// HashHex is the fixed-width content hash used for chain linking and
// Merkle roots.
func (s *Service) HashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RandomID mints a random record identifier.
func RandomID() string {
	return uuid.NewString()
}
