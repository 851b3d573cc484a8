package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sockcycle/config"
	"sockcycle/echoserver"
	"sockcycle/logger"
)

var (
	host       string
	port       int
	mode       string
	delimiter  string
	writeChunk int
	chunkDelay time.Duration
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "echo-server",
	Short:        "Line-oriented TCP server for exercising sock-cli",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(logLevel, cmd.ErrOrStderr())

		m, err := echoserver.ParseMode(mode)
		if err != nil {
			return err
		}
		delim, err := config.ParseDelimiter(delimiter)
		if err != nil {
			return err
		}

		log := logger.WithComponent("echo-server")
		s, err := echoserver.New(echoserver.Options{
			Host:       host,
			Port:       port,
			Mode:       m,
			Delimiter:  &delim,
			WriteChunk: writeChunk,
			ChunkDelay: chunkDelay,
			Logger:     log,
		})
		if err != nil {
			return err
		}
		if err := s.Start(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "echo-server (%s) listening on %s\n", m, s.Addr())

		// Wait for interrupt signal.
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		fmt.Fprintln(cmd.OutOrStdout(), "shutting down...")
		return s.Shutdown()
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&host, "host", "127.0.0.1", "listen address")
	f.IntVarP(&port, "port", "p", config.DefaultPort, "listen port (0 picks a free port)")
	f.StringVar(&mode, "mode", string(echoserver.ModeEcho), "echo, silent or hangup")
	f.StringVarP(&delimiter, "delimiter", "d", `\n`, "line delimiter in Go escape syntax")
	f.IntVar(&writeChunk, "write-chunk", 0, "split replies into pieces of this many bytes (0 = whole line)")
	f.DurationVar(&chunkDelay, "chunk-delay", 0, "pause between reply pieces")
	f.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
