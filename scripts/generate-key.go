// Package main prints a random admin session secret. The server rejects
// secrets shorter than 32 characters when the admin area is enabled; this
// produces 43 (32 random bytes, base64url).
//
//	go run ./scripts/generate-key.go >> .env
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
)

func main() {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("NAV_ADMIN_SESSION_SECRET=%s\n", base64.RawURLEncoding.EncodeToString(randomBytes))
}
