package main

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cometwire/bayeux"
)

type config struct {
	Hostname string
	Port     uint
	Protocol string
	Path     string
	LogLevel string
	Duration time.Duration
}

func main() {
	var cfg config

	cmd := &cobra.Command{
		Use:   "testutil [flags] channel...",
		Short: "connect to a Bayeux server and print messages from the given channels",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Protocol, "protocol", "https", "the protocol to use (http or https)")
	flags.UintVar(&cfg.Port, "port", 80, "the port used to connect to the Bayeux server")
	flags.StringVar(&cfg.Hostname, "hostname", "", "the hostname to connect to")
	flags.StringVar(&cfg.Path, "path", "", "the path used to connect to bayeux")
	flags.StringVar(&cfg.LogLevel, "loglevel", "error", "the level to log at")
	flags.DurationVar(&cfg.Duration, "duration", 5*time.Minute, "how long to listen before disconnecting")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(cfg config, channelNames []string) error {
	logger := logrus.New()
	logger.SetLevel(logLevel(cfg.LogLevel))

	u := url.URL{Scheme: cfg.Protocol, Host: fmt.Sprintf("%s:%d", cfg.Hostname, cfg.Port), Path: cfg.Path}
	client, err := bayeux.NewClient(u.String(), bayeux.WithFieldLogger(logger))
	if err != nil {
		return fmt.Errorf("error initializing client: %w", err)
	}
	logger.Debug("got client")

	var mu sync.Mutex
	received := table.NewWriter()
	received.SetOutputMirror(os.Stdout)
	received.AppendHeader(table.Row{"Channel", "ID", "Data"})

	listener := bayeux.ListenerFunc(func(m bayeux.Message) {
		mu.Lock()
		defer mu.Unlock()
		received.AppendRow(table.Row{m.Channel, m.ID, string(m.Data)})
	})

	for _, name := range channelNames {
		client.Register(bayeux.Channel(name), listener)
	}

	client.Start()
	defer client.Destroy()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	select {
	case <-interrupt:
	case <-time.After(cfg.Duration):
	}

	client.Stop()

	mu.Lock()
	defer mu.Unlock()
	received.Render()
	return nil
}

func logLevel(name string) logrus.Level {
	switch name {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		// Let's just skip panic as an option here
		return logrus.PanicLevel
	}
}
