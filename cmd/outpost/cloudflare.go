package main

import (
	"github.com/spf13/cobra"

	"github.com/fossable/outpost/pkg/cloudflareproxy"
)

func cloudflareCommand(global *globalFlags) *cobra.Command {
	var origin, binary string

	cmd := &cobra.Command{
		Use:   "cloudflare",
		Short: "Expose the local service through a cloudflared tunnel instead of AWS.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cloudflareproxy.Run(cmd.Context(), cloudflareproxy.Params{
				Binary:    binary,
				OriginURL: origin,
			})
		},
	}

	cmd.Flags().StringVar(&origin, "origin", "", "local endpoint to forward traffic to (scheme://host[:port])")
	cmd.Flags().StringVar(&binary, "cloudflared-binary", "", "path to the cloudflared executable (default: look up on PATH)")
	cmd.MarkFlagRequired("origin")

	return cmd
}
