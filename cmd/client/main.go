package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/elie00/stream-party-sub001/internal/client"
	"github.com/elie00/stream-party-sub001/internal/playsync"
)

// Headless party participant. Joins a room with a virtual player and
// follows the host; useful for soak-testing a relay and as a reference
// for real player integrations.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	url := pflag.String("url", "ws://localhost:8080/api/ws/party", "relay party endpoint")
	room := pflag.String("room", "main", "room to join")
	name := pflag.String("name", "headless", "display name")
	pflag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c, err := client.Dial(ctx, *url, client.Options{
		Room:     *room,
		Name:     *name,
		Player:   playsync.NewVirtualPlayer(),
		Tunables: playsync.DefaultTunables(),
		Logger:   log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("dial relay")
	}
	defer c.Close()

	log.Info().Str("room", *room).Msg("joined party")
	<-ctx.Done()
	log.Info().Msg("leaving party")
}
