// Package avatar derives stable avatar tokens for the admin UI.
package avatar

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Token maps an email address to its gravatar-compatible token: the md5
// hex digest of the trimmed, lower-cased address. It is a pure function
// and must only be called with a non-empty email.
func Token(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	sum := md5.Sum([]byte(email))
	return hex.EncodeToString(sum[:])
}
