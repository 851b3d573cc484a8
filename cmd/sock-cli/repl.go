package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Read lines from stdin and send each as its own cycle",
	Long: `repl opens a fresh connection for every input line, waits for the
response, prints it, and closes the connection again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newCycleRunner(profile)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "target %s (encoding %s)\n", runner.ep, runner.codec.Name())
		fmt.Fprintln(out, "type a line to send it, quit to exit")
		fmt.Fprintln(out)

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				break
			}

			line := strings.TrimRight(scanner.Text(), "\r")
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "":
				continue
			case "quit", "exit", "q":
				fmt.Fprintln(out, "bye")
				return nil
			}

			resp, err := runner.run(cmd.Context(), line)
			if err != nil {
				fmt.Fprintf(out, "error: %s\n", describeFailure(err))
				continue
			}
			fmt.Fprint(out, resp)
			if !strings.HasSuffix(resp, "\n") {
				fmt.Fprintln(out)
			}
		}
		return scanner.Err()
	},
}
