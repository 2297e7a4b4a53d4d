package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"rider-tracking/internal/cli"
)

func main() {
	var (
		subject = flag.String("subject", "", "Employee id of a rider, or the user id of a dispatcher/admin")
		role    = flag.String("role", "RIDER", "Caller role: RIDER | DISPATCHER | ADMIN")
		secret  = flag.String("secret", os.Getenv("TRACKING_JWT_SECRET"), "JWT HMAC secret (HS256)")
		ttl     = flag.Duration("ttl", 2*time.Hour, "Token lifetime")
	)
	flag.Parse()

	if *subject == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: key --subject=<id> --role=RIDER --secret='<secret>' [--ttl=2h]")
		os.Exit(2)
	}

	token, claims, err := cli.GenerateUserToken(*secret, *subject, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fmt.Println("TOKEN:")
	fmt.Println(token)
	fmt.Println("\nCLAIMS:")
	fmt.Printf("  sub:  %s\n", claims.Subject)
	fmt.Printf("  role: %s\n", claims.Role)
	fmt.Printf("  iat:  %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
	fmt.Printf("  exp:  %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
}
