package exchange

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/url"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestCredentials_Token(t *testing.T) {
	creds := Credentials{AccessKey: "access-1", SecretKey: "secret-1"}

	tokenString, err := creds.Token(nil)
	if err != nil {
		t.Fatalf("Failed to create token: %v", err)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			t.Fatalf("Unexpected signing method: %v", token.Method)
		}
		return []byte("secret-1"), nil
	})
	if err != nil {
		t.Fatalf("Failed to parse token: %v", err)
	}

	claims := token.Claims.(jwt.MapClaims)
	if claims["access_key"] != "access-1" {
		t.Errorf("Expected access_key access-1, got %v", claims["access_key"])
	}
	if claims["nonce"] == "" {
		t.Error("Expected a nonce")
	}
	if _, ok := claims["query_hash"]; ok {
		t.Error("Expected no query_hash without parameters")
	}
}

func TestCredentials_Token_QueryHash(t *testing.T) {
	creds := Credentials{AccessKey: "access-1", SecretKey: "secret-1"}
	query := url.Values{"market": {"KRW-BTC"}, "side": {"bid"}}

	tokenString, err := creds.Token(query)
	if err != nil {
		t.Fatalf("Failed to create token: %v", err)
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return []byte("secret-1"), nil
	})
	if err != nil {
		t.Fatalf("Failed to parse token: %v", err)
	}

	claims := token.Claims.(jwt.MapClaims)
	sum := sha512.Sum512([]byte(query.Encode()))
	if claims["query_hash"] != hex.EncodeToString(sum[:]) {
		t.Errorf("Unexpected query_hash %v", claims["query_hash"])
	}
	if claims["query_hash_alg"] != "SHA512" {
		t.Errorf("Expected SHA512, got %v", claims["query_hash_alg"])
	}
}

func TestCredentials_Token_Unconfigured(t *testing.T) {
	var creds Credentials
	if _, err := creds.Token(nil); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication, got %v", err)
	}
}

func TestCredentials_Token_UniqueNonces(t *testing.T) {
	creds := Credentials{AccessKey: "access-1", SecretKey: "secret-1"}

	nonces := make(map[interface{}]bool)
	for i := 0; i < 5; i++ {
		tokenString, err := creds.Token(nil)
		if err != nil {
			t.Fatalf("Failed to create token: %v", err)
		}
		token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
			return []byte("secret-1"), nil
		})
		if err != nil {
			t.Fatalf("Failed to parse token: %v", err)
		}
		nonce := token.Claims.(jwt.MapClaims)["nonce"]
		if nonces[nonce] {
			t.Fatal("Nonce reused across tokens")
		}
		nonces[nonce] = true
	}
}
