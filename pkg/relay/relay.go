package relay

import (
	"context"

	"github.com/quickfs/relay/pkg/config"
	"github.com/quickfs/relay/pkg/logger"
	"github.com/quickfs/relay/pkg/monitoring"
	"github.com/quickfs/relay/pkg/network/httpx"
	"github.com/quickfs/relay/pkg/service"
)

// Relay is the signaling relay application.
type Relay struct {
	conf     config.Config
	log      *logger.Logger
	services service.Group
}

func New(conf config.Config, log *logger.Logger) *Relay {
	r := &Relay{conf: conf, log: log}

	hub := NewHub(conf.Relay, log)
	server, err := httpx.NewServer(
		conf.Relay.Server.GetAddr(),
		func(*httpx.Server) httpx.Handler { return hub.Router() },
		httpx.WithServerConfig(conf.Relay.Server),
		httpx.WithLogger(log),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("couldn't init the signaling server")
	}
	r.services.Add(server)
	r.services.AddIf(conf.Relay.Monitoring.IsEnabled(), monitoring.New(conf.Relay.Monitoring, "relay", log))
	return r
}

func (r *Relay) Start() { r.services.Start() }

func (r *Relay) Shutdown(ctx context.Context) error { return r.services.Shutdown(ctx) }
