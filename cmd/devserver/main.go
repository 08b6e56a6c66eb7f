// Command devserver runs the in-memory bezrook backend for local trials of
// the CLI. State is lost on exit.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/bezrook/internal/apitest"
	"github.com/dmitrijs2005/bezrook/internal/logging"
)

func main() {
	addr := flag.String("a", "127.0.0.1:8000", "listen address")
	level := flag.String("l", "debug", "log level")
	login := flag.String("u", "", "create this user on start")
	password := flag.String("p", "", "password of the -u user")
	flag.Parse()

	logger := logging.New(os.Stderr, *level)
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sigs
		cancelFunc()
	}()

	b := apitest.New(apitest.WithLogger(logger))
	if *login != "" {
		if err := b.AddUser(*login, *password); err != nil {
			logger.Error(ctx, "seed user", "login", *login, "error", err)
			os.Exit(1)
		}
	}

	if err := b.Serve(ctx, *addr); err != nil {
		logger.Error(ctx, err.Error())
		os.Exit(1)
	}
}
