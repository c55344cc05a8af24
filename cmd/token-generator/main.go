// Command token-generator mints a bearer token for local development and
// manual testing of the task routes. It signs with the same secret and
// lifetime settings the server reads from its configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/phrazzld/todo-api/internal/config"
	"github.com/phrazzld/todo-api/internal/service/auth"
)

func main() {
	principal := flag.String("principal", "", "token subject, e.g. google-oauth2|1234")
	secret := flag.String("secret", os.Getenv(config.EnvPrefix+"_AUTH_JWT_SECRET"), "HMAC signing secret")
	lifetime := flag.Int("lifetime", 60, "token lifetime in minutes")
	flag.Parse()

	if *principal == "" {
		fmt.Fprintln(os.Stderr, "-principal is required")
		flag.Usage()
		os.Exit(2)
	}

	svc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            *secret,
		TokenLifetimeMinutes: *lifetime,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating token service: %v\n", err)
		os.Exit(1)
	}

	token, err := svc.GenerateToken(context.Background(), *principal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token for %s: %v\n", *principal, err)
		os.Exit(1)
	}

	fmt.Println(token)
}
