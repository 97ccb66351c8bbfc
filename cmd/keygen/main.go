package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// keygen prints fresh secrets for a new deployment: the field-encryption
// passphrase, the JWT signing secret, and a sample tenant key to hand to a
// first client.
func main() {
	encryptionKey, err := randomSecret(32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
		os.Exit(1)
	}
	jwtSecret, err := randomSecret(48)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("--- COPY BELOW TO .env.local ---")
	fmt.Printf("ENCRYPTION_KEY=%s\n", encryptionKey)
	fmt.Printf("ENABLE_ENCRYPTION=true\n")
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)
	fmt.Println("--------------------------------")
	fmt.Printf("sample tenant key: %s\n", uuid.NewString())
}

func randomSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
