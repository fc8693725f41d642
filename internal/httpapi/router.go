package httpapi

import (
	"net/http"

	"github.com/atomcoach/atom/internal/bot"
	"github.com/atomcoach/atom/internal/common"
	"github.com/atomcoach/atom/internal/config"
	"github.com/atomcoach/atom/internal/httpapi/handlers"
	"github.com/atomcoach/atom/internal/httpapi/middleware"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg config.Config, d *bot.Dispatcher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(cfg, d)

	r.GET("/ping", h.Ping)
	r.POST("/webhook", h.Webhook)

	return r
}
