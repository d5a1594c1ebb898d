package harness

import (
	"context"

	"github.com/cavarest/elemental-dragon/internal/config"
	"github.com/cavarest/elemental-dragon/internal/log"
	ednet "github.com/cavarest/elemental-dragon/internal/net"
)

// NetDialer opens real transports from configuration.
type NetDialer struct {
	Logger   log.EventLogger
	Observer ednet.CommandObserver
}

func (d NetDialer) DialConsole(ctx context.Context, cfg config.Config) (Console, error) {
	c, err := ednet.DialRCON(ctx, RCONConfig(cfg, d.Logger, d.Observer))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (d NetDialer) DialPlayer(ctx context.Context, cfg config.Config, username string) (Player, error) {
	pc := PlayerConfig(cfg, d.Logger, d.Observer)
	pc.Username = username
	p, err := ednet.DialPlayer(ctx, pc)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RCONConfig derives the console transport settings.
func RCONConfig(cfg config.Config, logger log.EventLogger, obs ednet.CommandObserver) ednet.RCONConfig {
	return ednet.RCONConfig{
		Host:           cfg.RCON.Host,
		Port:           cfg.RCON.Port,
		Password:       cfg.RCON.Password,
		DialTimeout:    cfg.Timeouts.Connection,
		CommandTimeout: cfg.Timeouts.Command,
		Logger:         logger,
		Observer:       obs,
	}
}

// PlayerConfig derives the player transport settings.
func PlayerConfig(cfg config.Config, logger log.EventLogger, obs ednet.CommandObserver) ednet.PlayerConfig {
	return ednet.PlayerConfig{
		URL:            cfg.Bridge.URL,
		Username:       cfg.Player,
		GameHost:       cfg.Game.Host,
		GamePort:       cfg.Game.Port,
		Auth:           cfg.Game.Auth,
		JoinTimeout:    cfg.Timeouts.Connection,
		CommandTimeout: cfg.Timeouts.Command,
		ChatWindow:     cfg.Bridge.ChatWindow,
		Logger:         logger,
		Observer:       obs,
	}
}
