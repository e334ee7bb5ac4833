package config

import (
	flag "github.com/spf13/pflag"
)

type Config struct {
	Relay Relay
}

type Relay struct {
	Debug bool
	// Origin restricts websocket upgrades to the given origin,
	// empty allows all.
	Origin     string
	Server     Server
	Monitoring Monitoring
}

type Server struct {
	Address string
	Https   bool
	Tls     struct {
		Address   string
		Domain    string
		HttpsKey  string
		HttpsCert string
	}
}

func (s *Server) GetAddr() string {
	if s.Https {
		return s.Tls.Address
	}
	return s.Address
}

type Monitoring struct {
	Port             int
	URLPrefix        string
	MetricEnabled    bool `fig:"metricEnabled"`
	ProfilingEnabled bool `fig:"profilingEnabled"`
}

func (m *Monitoring) IsEnabled() bool { return m.MetricEnabled || m.ProfilingEnabled }

// allows custom config path
var configPath string

func NewConfig() (conf Config) {
	if err := LoadConfig(&conf, configPath); err != nil {
		panic(err)
	}
	return
}

func (c *Config) ParseFlags() {
	flag.StringVar(&c.Relay.Server.Address, "address", c.Relay.Server.Address, "HTTP server address (host:port)")
	flag.StringVar(&c.Relay.Server.Tls.Address, "httpsAddress", c.Relay.Server.Tls.Address, "HTTPS server address (host:port)")
	flag.IntVar(&c.Relay.Monitoring.Port, "monitoring.port", c.Relay.Monitoring.Port, "Monitoring server port")
	flag.BoolVar(&c.Relay.Debug, "debug", c.Relay.Debug, "Enable debug logging")
	flag.Parse()
}
