package webhook

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/veraproof/verification-core/internal/crypto"
)

// EncryptSecret wraps a webhook signing secret for storage, binding it to
// the owning tenant via AAD so a row copied to another tenant's record
// fails to decrypt.
func EncryptSecret(kr *crypto.Keyring, tenantID, plaintext string) (string, error) {
	kid, nonce, ciphertext, tag, err := kr.WrapDEK([]byte(plaintext), []byte(tenantID))
	if err != nil {
		return "", err
	}
	return strings.Join([]string{
		kid,
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(tag),
	}, ":"), nil
}

func DecryptSecret(kr *crypto.Keyring, tenantID, encoded string) (string, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 4 {
		return "", fmt.Errorf("malformed encrypted webhook secret")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", err
	}
	tag, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return "", err
	}
	plaintext, err := kr.UnwrapDEK(parts[0], nonce, ciphertext, tag, []byte(tenantID))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
