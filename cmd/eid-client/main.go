// eid-client submits a claim signed with an Estonian ID card to the claim handling service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/information-sharing-networks/eid-claim-demo/app/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Execute(ctx)
}
