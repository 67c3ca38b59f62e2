package main

import (
	"github.com/spf13/cobra"

	"github.com/nongjianweihao/share-car/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (configured through SHARECAR_* environment variables)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run()
		},
	}
}
