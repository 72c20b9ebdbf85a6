// Package common holds primitives shared across meshchain: canonical
// JSON encoding, hashing, and the small helpers every other package
// builds on.
package common

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
)

// CanonicalJSON marshals v to JSON with map keys sorted, by round-tripping
// through a generic interface{} — encoding/json already sorts the keys of
// any map[string]interface{} it marshals, so this needs no third-party
// canonical-JSON encoder.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal")
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, errors.Wrap(err, "unmarshal into generic")
	}
	sorted, err := json.Marshal(generic)
	if err != nil {
		return nil, errors.Wrap(err, "remarshal sorted")
	}
	return sorted, nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashCanonicalJSON hashes the canonical JSON form of v.
func HashCanonicalJSON(v interface{}) (string, error) {
	raw, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	return SHA256Hex(raw), nil
}
