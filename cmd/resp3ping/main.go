// Command resp3ping is a diagnostic CLI over the resp3pipe core: it dials a
// single connection, completes the HELLO handshake, sends the command line
// given on the command line, and prints the decoded response tree as JSON.
//
// Usage:
//
//	resp3ping --host 127.0.0.1 --port 6379 -- PING
//	resp3ping --host 127.0.0.1 --port 6379 -- HSET key field value
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nilsc-dev/resp3pipe/conn"
)

var (
	flagHost    string
	flagPort    string
	flagUser    string
	flagPass    string
	flagTimeout time.Duration
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&flagHost, "host", "H", "", "redis host (overrides RESP3PING_HOST)")
	flags.StringVarP(&flagPort, "port", "p", "", "redis port (overrides RESP3PING_PORT)")
	flags.StringVarP(&flagUser, "username", "u", "", "AUTH username (overrides RESP3PING_USERNAME)")
	flags.StringVarP(&flagPass, "password", "a", "", "AUTH password (overrides RESP3PING_PASSWORD)")
	flags.DurationVarP(&flagTimeout, "timeout", "t", 5*time.Second, "overall deadline for connect+exec")
}

var rootCmd = &cobra.Command{
	Use:   "resp3ping -- COMMAND [arg...]",
	Short: "Send one RESP3 command over a resp3pipe connection and print the reply as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPing,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runPing(cmd *cobra.Command, args []string) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, flagTimeout)
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagHost != "" {
		cfg.Host = flagHost
	}
	if flagPort != "" {
		cfg.Port = flagPort
	}
	if flagUser != "" {
		cfg.Username = flagUser
	}
	if flagPass != "" {
		cfg.Password = flagPass
	}

	log, err := makeLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	c, err := conn.New(ctx, conn.Opts{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Username:       cfg.Username,
		Password:       cfg.Password,
		ConnectTimeout: flagTimeout,
		Logger:         zapConnLogger{log: log},
	})
	if err != nil {
		return fmt.Errorf("new connection: %w", err)
	}

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- c.Run() }()

	tree, elapsed, err := execOne(c, args)
	c.Cancel(conn.OperationRun)
	<-runErrCh

	if err != nil {
		return err
	}

	fmt.Println(renderTreeJSON(args[0], elapsed, tree))
	return nil
}
