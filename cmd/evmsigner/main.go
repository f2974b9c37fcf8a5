// Command evmsigner inspects and exercises remote EVM signing keys held by Turnkey, AWS KMS or
// Google Cloud KMS.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("evmsigner failed")
		stop()
		os.Exit(1)
	}
}
