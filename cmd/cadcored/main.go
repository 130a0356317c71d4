// Command cadcored is the cadcore server entrypoint: it wires storage,
// caching, and event-sourcing dependencies from the environment and
// keeps them alive for whatever embeds this module to drive.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/harborgrid-justin/cadcore/common"
	"github.com/harborgrid-justin/cadcore/internal/bootstrap"
)

func main() {
	svc, err := bootstrap.InitServers(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "cadcored: failed to initialize: %v\n", err)
		os.Exit(1)
	}

	common.NewLauncher(
		common.WithLogger(svc.Logger),
		common.RunApp(bootstrap.ApplicationName, bootstrap.NewServer(svc)),
	).Run()
}
