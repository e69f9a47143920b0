// Command devtoken mints an HS256 access token for local development.
// Production tokens come from the identity provider.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/round-seat-reservation/internal/config"
	"github.com/iliyamo/round-seat-reservation/internal/middleware"
	"github.com/iliyamo/round-seat-reservation/internal/utils"
)

func main() {
	userID := flag.Uint64("user", 0, "user id placed in the sub claim")
	role := flag.String("role", middleware.RoleMember, "MEMBER, ORGANIZER, PAYMENT or ADMIN")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *userID == 0 {
		log.Fatal().Msg("-user is required")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	tok, err := utils.NewAccessToken(cfg.JWTSecret, *userID, *role, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign token")
	}
	fmt.Println(tok.Token)
}
