package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	tradeflow "github.com/tradeflowhq/tradeflow"
	"github.com/tradeflowhq/tradeflow/api/middleware"
	"github.com/tradeflowhq/tradeflow/config"
	"github.com/tradeflowhq/tradeflow/dispatch"
)

type Api struct {
	tradeflow  *tradeflow.TradeFlow
	operations *dispatch.Registry
	router     *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/actions", a.ProposeAction)
	router.GET("/actions/:id", a.GetAction)
	router.POST("/actions/:id/confirm", a.ConfirmAction)
	router.POST("/actions/:id/cancel", a.CancelAction)

	router.GET("/sessions/:session_id/actions", a.ListSessionActions)
	router.GET("/sessions/:session_id/candidates", a.ResolveCandidates)
	router.POST("/sessions/:session_id/confirm", a.ConfirmSession)

	return a.router
}

func NewAPI(t *tradeflow.TradeFlow, operations *dispatch.Registry) (*Api, error) {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{tradeflow: t, operations: operations, router: r}, nil
}
