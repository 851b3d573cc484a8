package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send [text...]",
	Short: "Run one request/response cycle",
	Long: `send joins its arguments with spaces, encodes them, appends the
delimiter (unless --no-append), and prints the response.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newCycleRunner(profile)
		if err != nil {
			return err
		}
		resp, err := runner.run(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return errors.New(describeFailure(err))
		}
		fmt.Fprint(cmd.OutOrStdout(), resp)
		if !strings.HasSuffix(resp, "\n") {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	},
}
