// Command ssourl prints the identity provider URL a browser is sent to when
// the portal's SSO button is clicked.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mojtvz/internal/portal"
)

func main() {
	portalURL := flag.String("portal", "https://moj.tvz.hr/", "portal login page URL")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	showToken := flag.Bool("token", false, "print the page token instead of the SSO URL")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	client, err := portal.NewClient(*portalURL, *timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid portal url")
	}

	log.Debug().Str("portal", client.Base().String()).Msg("resolving login")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *showToken {
		tok, err := client.Token(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read page token")
		}
		fmt.Println(tok)
		return
	}

	redirect, err := client.SSORedirect(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve SSO redirect")
	}
	if client.LoggedIn(redirect) {
		log.Info().Msg("portal session already signed in")
	}
	fmt.Println(redirect)
}
