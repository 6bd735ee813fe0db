// Package main is a development utility that mints identity tokens for
// exercising the admin API without a real identity provider. It signs a JWT
// with the same HIB_JWT_SECRET the server validates against, so a token
// minted here works directly in an Authorization header for curl-style
// post-deployment checks.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/hibachi-hq/platform-backend/internal/auth"
)

func main() {
	var (
		userID  = flag.String("user", "dev-user", "actor id to embed in the token")
		role    = flag.String("role", "ADMIN", "role: SUPER_ADMIN, ADMIN, SUPPORT, or TENANT_MANAGER")
		station = flag.String("station", "", "bound station id (required for TENANT_MANAGER, forbidden otherwise)")
		name    = flag.String("name", "Dev User", "display name")
		email   = flag.String("email", "dev@hibachi-hq.com", "email address")
		ttl     = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	actor := &auth.Actor{
		ID:          *userID,
		Role:        auth.Role(*role),
		DisplayName: *name,
		Email:       *email,
	}
	if *station != "" {
		actor.BoundStationID = station
	}
	if err := actor.Validate(); err != nil {
		log.Fatalf("Invalid actor: %v", err)
	}

	token, err := auth.GenerateToken(actor, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
