package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
	"github.com/spf13/cobra"
)

func newErrorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "errors",
		Short: "列出所有已注册的错误码",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tMODULE\tHTTP\tKEY\tMESSAGE")
			for _, e := range errcode.All() {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", e.Code(), e.Module(), e.HTTPStatus(), e.MsgKey(), e.Message())
			}
			return w.Flush()
		},
	}
}
