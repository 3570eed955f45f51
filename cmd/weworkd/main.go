package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-wecom-suite/agent"
	"github.com/jrsteele09/go-wecom-suite/contacts"
	"github.com/jrsteele09/go-wecom-suite/internal/config"
	"github.com/jrsteele09/go-wecom-suite/message"
	"github.com/jrsteele09/go-wecom-suite/server"
	"github.com/jrsteele09/go-wecom-suite/wecom"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("weworkd exited")
	}
	log.Info().Msg("weworkd stopped")
}

func run(log zerolog.Logger) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.Errorf("panic recovered: %v", r)
		}
	}()

	cfg := config.New()
	if cfg.GetSuiteID() == "" || cfg.GetSuiteSecret() == "" {
		return errors.New("SUITE_ID and SUITE_SECRET must be set")
	}

	displayAppname(cfg.GetAppName())

	options := []wecom.Option{wecom.WithLogger(log)}
	if cfg.GetWecomBaseURL() != "" {
		options = append(options, wecom.WithBaseURL(cfg.GetWecomBaseURL()))
	}
	client := wecom.New(cfg.GetSuiteID(), cfg.GetSuiteSecret(), options...)

	registry := wecom.NewRegistry()
	for _, register := range []func(*wecom.Registry, *wecom.Client) error{
		contacts.Register,
		message.Register,
		agent.Register,
	} {
		if err := register(registry, client); err != nil {
			return errors.Wrap(err, "register operations")
		}
	}
	log.Info().Strs("operations", registry.Names()).Msg("operations registered")

	httpServer := &http.Server{
		Addr:    cfg.GetPort(),
		Handler: server.New(client, registry, log).Handler(),
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("listen and serve")
		}
	}()

	waitForStopSignal()
	return shutdown(httpServer)
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
