package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCallCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "call [flags] <method> [args...]",
		Short: "Call a method on the demo manipulator",
		Long: `Call a method on the demo manipulator and print its values.

Arguments are read as nil, booleans, integers, floats or strings. Flags
go before the method name; everything after it is an argument, so
negative numbers need no escaping:

  capdispatch call --timeout 10s getBlockMeta -1 0 0`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(a.cfg, a.logger)
			if err != nil {
				return err
			}
			s.start(cmd.Context())
			defer s.close()

			values, err := s.callWithTimeout(cmd.Context(), args[0], parseArgs(args[1:]), timeout)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), formatValues(values))
			return err
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "how long to wait for deferred results")
	return cmd
}
