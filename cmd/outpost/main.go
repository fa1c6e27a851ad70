// Command outpost runs the origin-side control plane: it provisions a
// disposable cloud proxy, opens an encrypted tunnel to it, and steers the
// requested ports through to a local service until shut down.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/spf13/cobra"

	"github.com/fossable/outpost/internal/config"
	"github.com/fossable/outpost/pkg/log"
)

type globalFlags struct {
	uploadLimitMbps   uint
	downloadLimitMbps uint
}

func main() {
	ctx := context.Background()
	ctx = log.WithLogger(ctx)
	ctx = dgroup.WithGoroutineName(ctx, "/outpost")

	var flags globalFlags
	root := &cobra.Command{
		Use:           "outpost",
		Short:         "Expose a local service through a disposable cloud proxy and an encrypted tunnel.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().UintVar(&flags.uploadLimitMbps, "upload-limit", 0, "cap upload throughput in Mbps (1-10000)")
	root.PersistentFlags().UintVar(&flags.downloadLimitMbps, "download-limit", 0, "cap download throughput in Mbps (1-10000)")

	env, err := config.LoadEnv(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "outpost: failed to load environment: %v\n", err)
		os.Exit(1)
	}

	root.AddCommand(awsCommand(&flags, env))
	root.AddCommand(cloudflareCommand(&flags))

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "outpost: %v\n", err)
		os.Exit(1)
	}
}
