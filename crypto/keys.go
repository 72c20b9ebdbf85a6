// Package crypto wraps the secp256k1 primitives meshchain needs: an
// ephemeral node keypair and the sign/verify pair used to build and
// check VRF submissions during leader election.
//
// The teacher repo (klaytn) does the equivalent work through its own
// crypto package, a cgo wrapper around libsecp256k1 that was not part
// of the retrieved file set. meshchain instead uses the pure-Go
// github.com/decred/dcrd/dcrec/secp256k1/v4 library, the secp256k1
// implementation already present in the retrieval pack (pulled in by
// the libp2p stack of the mini_chain example).
package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"

	"github.com/meshchain/meshchain/log"
)

var logger = log.NewModuleLogger(log.Crypto)

// PrivateKey is a node's ephemeral secp256k1 signing key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey is the public half of a PrivateKey.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// GenerateKey creates a fresh secp256k1 keypair, used once per node at
// boot.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generate secp256k1 key")
	}
	return &PrivateKey{key: key}, nil
}

// Public returns the public key corresponding to priv.
func (priv *PrivateKey) Public() *PublicKey {
	return &PublicKey{key: priv.key.PubKey()}
}

// PublicKeyBase64 returns the raw (uncompressed) public key, base64
// encoded, the wire form carried in every VRF submission.
func (priv *PrivateKey) PublicKeyBase64() string {
	return priv.Public().Base64()
}

// Base64 returns the raw uncompressed public key bytes, base64 encoded.
func (pub *PublicKey) Base64() string {
	return base64.StdEncoding.EncodeToString(pub.key.SerializeUncompressed())
}

// ParsePublicKeyBase64 decodes a base64-encoded raw public key as
// produced by PublicKey.Base64.
func ParsePublicKeyBase64(s string) (*PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode public key base64")
	}
	key, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse secp256k1 public key")
	}
	return &PublicKey{key: key}, nil
}

// SignHex signs the SHA-256 digest of message (typically the election
// seed concatenated with the signer's claimed candidate identity) and
// returns the DER signature, base64 encoded.
func (priv *PrivateKey) SignHex(message string) (string, error) {
	digest := sha256.Sum256([]byte(message))
	sig := ecdsa.Sign(priv.key, digest[:])
	return base64.StdEncoding.EncodeToString(sig.Serialize()), nil
}

// VerifyHex verifies that sigBase64 is a valid signature by pub over the
// SHA-256 digest of message.
func VerifyHex(pub *PublicKey, message string, sigBase64 string) bool {
	raw, err := base64.StdEncoding.DecodeString(sigBase64)
	if err != nil {
		logger.Warn("failed to decode signature", "err", err)
		return false
	}
	sig, err := ecdsa.ParseDERSignature(raw)
	if err != nil {
		logger.Warn("failed to parse DER signature", "err", err)
		return false
	}
	digest := sha256.Sum256([]byte(message))
	return sig.Verify(digest[:], pub.key)
}

// SHA256HexOfBase64 returns the lowercase hex SHA-256 digest of the raw
// bytes behind a base64 string — used to compute a VRF submission's
// output_hash from its signature.
func SHA256HexOfBase64(b64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", errors.Wrap(err, "decode base64")
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
