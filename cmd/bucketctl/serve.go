package main

import (
	"github.com/KOMKZ/go-yogan-bucket/application"
	"github.com/spf13/cobra"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP / gRPC 限流网关",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := application.NewServer(g.options(nil))
			if err != nil {
				return err
			}
			app.WithVersion(version)
			return app.Run()
		},
	}
}
