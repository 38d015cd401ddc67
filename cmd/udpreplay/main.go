package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/udpreplay/internal/config"
	"github.com/zsiec/udpreplay/internal/errors"
	"github.com/zsiec/udpreplay/internal/logger"
	"github.com/zsiec/udpreplay/internal/replay"
	"github.com/zsiec/udpreplay/internal/replay/pacer"
	"github.com/zsiec/udpreplay/internal/replay/packet"
	"github.com/zsiec/udpreplay/internal/replay/sender"
	"github.com/zsiec/udpreplay/internal/replay/source"
	"github.com/zsiec/udpreplay/internal/server"
	"github.com/zsiec/udpreplay/internal/status"
	"github.com/zsiec/udpreplay/pkg/version"
)

const usage = `Usage: udpreplay [-version] <config-file>

Replays the rows of a delimited numeric file as UDP datagrams at a fixed
frequency. Each row becomes one datagram of little-endian floats or doubles.

Example configuration (JSON):
  {
    "socket": {"ip_address": "127.0.0.1", "port": "5555", "frequency": "100"},
    "data": {"path": "data.csv", "delimiter": ",", "header": "0",
             "type": "float", "length": "0"}
  }

  type    float (4 bytes) or double (8 bytes)
  length  elements per datagram, 0 sends every row as is
  header  leading lines of the file to skip
`

func main() {
	os.Exit(run())
}

func run() int {
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		return 0
	}
	if flag.NArg() != 1 {
		flag.Usage()
		return 0
	}
	configPath := flag.Arg(0)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", errors.WrapConfigError(err, "failed to load configuration"))
		return 1
	}

	entry, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	entry = logger.WithRun(entry, uuid.New().String())
	log := logger.NewLogrusAdapter(entry)

	fmt.Println(status.RenderConfig(cfg, configPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := replayFile(ctx, cfg, log, entry)
	fmt.Println(status.RenderStats(stats, err))

	switch {
	case err == nil:
		return 0
	case stderrors.Is(err, context.Canceled):
		log.Info("Shutdown complete")
		return 0
	default:
		log.WithError(err).Error("Replay failed")
		return 1
	}
}

func replayFile(ctx context.Context, cfg *config.Config, log logger.Logger, entry *logger.Entry) (replay.Stats, error) {
	delimiter, err := cfg.Data.DelimiterRune()
	if err != nil {
		return replay.Stats{}, errors.WrapConfigError(err, "invalid delimiter")
	}
	spec, err := cfg.Data.PacketSpec()
	if err != nil {
		return replay.Stats{}, errors.WrapConfigError(err, "invalid data type")
	}
	packer, err := packet.New(spec)
	if err != nil {
		return replay.Stats{}, errors.WrapConfigError(err, "invalid packet layout")
	}
	p, err := pacer.New(cfg.Socket.Frequency)
	if err != nil {
		return replay.Stats{}, errors.WrapConfigError(err, "invalid frequency")
	}

	src, err := source.Open(cfg.Data.Path, source.Options{
		Delimiter:   delimiter,
		HeaderLines: cfg.Data.Header,
	})
	if err != nil {
		return replay.Stats{}, errors.WrapInternalError(err, "failed to open source")
	}
	defer src.Close()

	snd, err := sender.Dial(ctx, cfg.Socket.IPAddress, cfg.Socket.Port,
		sender.WithWriteBuffer(cfg.Socket.WriteBuffer))
	if err != nil {
		return replay.Stats{}, errors.WrapInternalError(err, "failed to open socket")
	}
	defer snd.Close()

	tx, err := replay.New(replay.Config{
		Source: src,
		Packer: packer,
		Pacer:  p,
		Sender: snd,
		Logger: log,
	})
	if err != nil {
		return replay.Stats{}, errors.WrapInternalError(err, "failed to create transmitter")
	}

	if cfg.Metrics.Enabled {
		srv := server.New(&cfg.Metrics, entry, tx)
		if err := srv.Start(); err != nil {
			return replay.Stats{}, errors.WrapInternalError(err, "failed to start metrics server")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("Metrics server shutdown failed")
			}
		}()
	}

	return tx.Run(ctx)
}
