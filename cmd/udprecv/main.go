package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zsiec/udpreplay/internal/config"
	"github.com/zsiec/udpreplay/internal/logger"
	"github.com/zsiec/udpreplay/internal/receiver"
	"github.com/zsiec/udpreplay/internal/replay/packet"
	"github.com/zsiec/udpreplay/pkg/version"
)

func main() {
	var (
		listen      string
		elemType    string
		logLevel    string
		showVersion bool
	)

	flag.StringVar(&listen, "listen", "0.0.0.0:9000", "UDP address to listen on")
	flag.StringVar(&elemType, "type", "double", "Element type: float or double")
	flag.StringVar(&logLevel, "log-level", "info", "Log level")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	width, err := packet.ParseWidth(elemType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	entry, err := logger.New(&config.LoggingConfig{Level: logLevel, Format: "text", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLogrusAdapter(entry)

	l, err := receiver.Listen(listen, width, log)
	if err != nil {
		log.WithError(err).Error("Failed to start receiver")
		os.Exit(1)
	}
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("CTRL+C for exit")
	log.WithField("addr", l.Addr().String()).Infof("Listening for %s datagrams", width)

	err = l.Run(ctx, func(d receiver.Datagram) {
		fmt.Println(d.Values)
	})
	if err != nil && !stderrors.Is(err, context.Canceled) {
		log.WithError(err).Error("Receiver stopped")
		stop()
		l.Close()
		os.Exit(1)
	}
}
