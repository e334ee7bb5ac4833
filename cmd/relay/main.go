package main

import (
	"context"
	goflag "flag"

	"github.com/quickfs/relay/pkg/config"
	"github.com/quickfs/relay/pkg/logger"
	"github.com/quickfs/relay/pkg/os"
	"github.com/quickfs/relay/pkg/relay"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf := config.NewConfig()
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.ParseFlags()

	log := logger.NewConsole(conf.Relay.Debug, "r", false)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	if lock, err := os.NewFileLock(""); err == nil {
		if ok, _ := lock.TryLock(); !ok {
			log.Fatal().Msg("another relay instance is already running")
		}
		defer func() { _ = lock.Unlock() }()
	}

	r := relay.New(conf, log)
	r.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if err := r.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()
	<-os.ExpectTermination()
	cancel()
}
