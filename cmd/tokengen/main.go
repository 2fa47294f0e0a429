// Command tokengen prints a bearer token accepted by the fileshare server.
//
//	tokengen -user alice -secret "$SECRET" -ttl 1h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/fileshare/internal/server/auth"
	"github.com/dmitrijs2005/fileshare/internal/server/config"
)

func main() {
	defaults := &config.Config{}
	defaults.LoadDefaults()

	user := flag.String("user", "", "user id the token is issued for")
	secret := flag.String("secret", defaults.SecretKey, "HS256 signing secret (server -s)")
	ttl := flag.Duration("ttl", defaults.AccessTokenValidityDuration, "token lifetime")
	flag.Parse()

	token, err := auth.GenerateToken(*user, []byte(*secret), *ttl)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Fprintln(os.Stdout, token)
}
