package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Sign computes an HMAC-SHA256 signature over the payload's canonical JSON
// encoding (map keys sorted, matching what a receiving client would
// recompute with any standard JSON library's sorted-key mode).
func Sign(secret string, payload map[string]any) (string, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), body, nil
}
