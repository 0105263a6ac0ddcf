package exchange

import (
	"crypto/sha512"
	"encoding/hex"
	"net/url"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Credentials holds the API key pair used to sign private requests.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Configured reports whether both keys are present.
func (c Credentials) Configured() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// Token builds a signed JWT for one private request. Requests with query
// parameters or a body carry a SHA512 hash of the encoded parameters so the
// exchange can verify them against the signature.
func (c Credentials) Token(query url.Values) (string, error) {
	if !c.Configured() {
		return "", ErrAuthentication
	}

	claims := jwt.MapClaims{
		"access_key": c.AccessKey,
		"nonce":      uuid.NewString(),
	}

	if len(query) > 0 {
		sum := sha512.Sum512([]byte(query.Encode()))
		claims["query_hash"] = hex.EncodeToString(sum[:])
		claims["query_hash_alg"] = "SHA512"
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.SecretKey))
}
