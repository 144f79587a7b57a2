// Test program to generate JWT tokens for local API testing.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/puddingmeetup/server/internal/auth"
)

func main() {
	var (
		subject = flag.String("subject", "01HQZX3Y4K6F7G8H9J0K1M2N3P", "user ULID to issue the token for")
		role    = flag.String("role", "user", "role claim (user or admin)")
		expiry  = flag.Duration("expiry", 24*time.Hour, "token lifetime")
	)
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "Error: JWT_SECRET is not set")
		os.Exit(1)
	}

	manager := auth.NewJWTManager(secret, *expiry, "puddingmeetup")
	token, err := manager.Generate(*subject, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("JWT Token:")
	fmt.Println(token)
	fmt.Println("\nTest with:")
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:8080/api/v1/auth/me\n", token)
}
