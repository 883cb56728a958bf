package authn

import (
	"crypto/rand"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
)

// IssuedClaims is the payload of a token minted by IssueDevToken.
type IssuedClaims struct {
	Username string   `json:"username"`
	Scopes   []string `json:"scopes"`
	jwt.StandardClaims
}

// devKeyBytes backs the development token issuer below; it is re-rolled
// once per process via SeedDevKey and is never meant to authenticate a
// production deployment (spec §A: the server has no built-in identity
// provider, only a local token-minting convenience for operators testing
// against `cmd/device-model-server` directly). Grounded on the teacher's
// jwtAuth.go hmacSampleSecret/GenerateJwtSecretKey pair.
var devKeyBytes = make([]byte, 32)

// SeedDevKey re-randomizes the signing key used by IssueDevToken. Call
// once at process startup.
func SeedDevKey() error {
	_, err := rand.Read(devKeyBytes)
	return err
}

// IssueDevToken mints an HS256 JWT for local testing/CLI use, carrying
// username and scopes exactly as ParseClaims expects to read them back
// (the server itself never calls this on the request path — it only
// parses claims, per this package's doc comment).
func IssueDevToken(username string, scopes []string, ttl time.Duration) (string, error) {
	claims := &IssuedClaims{
		Username: username,
		Scopes:   scopes,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(devKeyBytes)
}
