package delta

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint computes the SHA-256 hash of the delta in canonical form.
// Returns the hash prefixed with "sha256:".
func Fingerprint(d Delta) string {
	hash := sha256.Sum256(canonicalJSON(d))
	return "sha256:" + hex.EncodeToString(hash[:])
}

// canonicalJSON produces JSON with sorted keys and no whitespace.
func canonicalJSON(d Delta) []byte {
	if len(d) == 0 {
		return []byte("{}")
	}

	result := []byte("{")
	for i, k := range d.Keys() {
		if i > 0 {
			result = append(result, ',')
		}
		keyJSON, _ := json.Marshal(k)
		valueJSON, _ := json.Marshal(d[k])
		result = append(result, keyJSON...)
		result = append(result, ':')
		result = append(result, valueJSON...)
	}
	result = append(result, '}')
	return result
}
