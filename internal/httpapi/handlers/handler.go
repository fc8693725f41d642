package handlers

import (
	"github.com/atomcoach/atom/internal/bot"
	"github.com/atomcoach/atom/internal/config"
)

type Handler struct {
	Cfg        config.Config
	Dispatcher *bot.Dispatcher
}

func NewHandler(cfg config.Config, d *bot.Dispatcher) *Handler {
	return &Handler{Cfg: cfg, Dispatcher: d}
}
