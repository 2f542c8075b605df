package bus

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/rs/zerolog"

	"livescribe/internal/config"
)

// EmbeddedServer runs an in-process NATS server so the engine needs no
// external broker.
type EmbeddedServer struct {
	ns  *server.Server
	log zerolog.Logger
}

// StartEmbedded starts a server on cfg.Host:cfg.Port. Port -1 picks a free port.
func StartEmbedded(cfg config.BusConfig, log zerolog.Logger) (*EmbeddedServer, error) {
	opts := &server.Options{
		Host:          cfg.Host,
		Port:          cfg.Port,
		NoSigs:        true,
		NoLog:         true,
		Authorization: cfg.Token,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start within 5 seconds")
	}

	log.Info().Str("url", ns.ClientURL()).Msg("embedded NATS server started")
	return &EmbeddedServer{ns: ns, log: log}, nil
}

// ClientURL is the URL clients should dial.
func (e *EmbeddedServer) ClientURL() string {
	return e.ns.ClientURL()
}

func (e *EmbeddedServer) Shutdown() {
	if e == nil || e.ns == nil {
		return
	}
	e.log.Info().Msg("shutting down embedded NATS server")
	e.ns.Shutdown()
	e.ns.WaitForShutdown()
}
