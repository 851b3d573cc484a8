package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sockcycle/config"
	"sockcycle/logger"
)

// globalFlags are shared by every subcommand. Zero values mean "not set";
// only flags the user changed override the profile.
type globalFlags struct {
	ConfigFile string
	LogLevel   string

	Host           string
	Port           int
	Network        string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	Delimiter      string
	NoAppend       bool
	Encoding       string
}

var (
	flags   globalFlags
	profile config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sock-cli",
	Short: "Send a request over TCP and print the delimited response",
	Long: `sock-cli opens a TCP connection, sends one request, reads until the
response ends with the delimiter, and closes the connection.

Settings come from defaults, then the --config INI profile, then
SOCKCYCLE_* environment variables, then flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		profile = config.Default()
		if flags.ConfigFile != "" {
			if err := config.Load(&profile, flags.ConfigFile); err != nil {
				return err
			}
		} else {
			config.ApplyEnv(&profile)
		}
		applyFlagOverrides(cmd)
		if err := profile.Validate(); err != nil {
			return err
		}
		logger.Init(profile.Level, cmd.ErrOrStderr())
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.ConfigFile, "config", "", "INI profile file")
	pf.StringVar(&flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")

	pf.StringVar(&flags.Host, "host", "", "target host (default: first local IPv4 address)")
	pf.IntVarP(&flags.Port, "port", "p", config.DefaultPort, "target port")
	pf.StringVar(&flags.Network, "network", "tcp", "network type: tcp, tcp4, tcp6")
	pf.DurationVar(&flags.ConnectTimeout, "connect-timeout", time.Second, "connect timeout")
	pf.DurationVar(&flags.WriteTimeout, "write-timeout", time.Second, "write timeout")
	pf.DurationVar(&flags.ReadTimeout, "read-timeout", time.Second, "timeout for the whole response")
	pf.StringVarP(&flags.Delimiter, "delimiter", "d", `\n`, `response delimiter in Go escape syntax, e.g. \n or \x03`)
	pf.BoolVar(&flags.NoAppend, "no-append", false, "do not append the delimiter to the request")
	pf.StringVarP(&flags.Encoding, "encoding", "e", "utf-8", "text encoding: utf-8, shift_jis, euc-jp, iso-2022-jp")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(replCmd)
}

func applyFlagOverrides(cmd *cobra.Command) {
	changed := cmd.Flags().Changed
	if changed("log-level") {
		profile.Level = flags.LogLevel
	}
	if changed("host") {
		profile.Host = flags.Host
	}
	if changed("port") {
		profile.Port = flags.Port
	}
	if changed("network") {
		profile.Network = flags.Network
	}
	if changed("connect-timeout") {
		profile.Connect = flags.ConnectTimeout
	}
	if changed("write-timeout") {
		profile.Write = flags.WriteTimeout
	}
	if changed("read-timeout") {
		profile.Read = flags.ReadTimeout
	}
	if changed("delimiter") {
		profile.Delimiter = flags.Delimiter
	}
	if changed("no-append") {
		profile.AppendDelimiter = !flags.NoAppend
	}
	if changed("encoding") {
		profile.Encoding = flags.Encoding
	}
}
