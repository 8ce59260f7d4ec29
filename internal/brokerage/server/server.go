// Package server is the inbound HTTP boundary. Authentication is terminated
// by the upstream proxy, which forwards the caller's user id in the
// X-User-ID header; everything here assumes that header is trustworthy.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tradingflow/server/internal/brokerage"
)

type Server struct {
	coordinator *brokerage.Coordinator
}

func New(coordinator *brokerage.Coordinator) *Server {
	return &Server{coordinator: coordinator}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.wrap(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	api := r.Group("/api")

	brokers := api.Group("/brokers")
	brokers.GET("/", s.wrap(s.handleBrokersList))
	brokers.POST("/", s.wrap(s.handleBrokersCreate))
	brokerID := brokers.Group("/:brokerID")
	brokerID.GET("/", s.wrap(s.handleBrokerGet))
	brokerID.PUT("/", s.wrap(s.handleBrokerUpdate))
	brokerID.DELETE("/", s.wrap(s.handleBrokerDelete))
	brokerID.GET("/orders", s.wrap(s.handleOrdersList))
	brokerID.POST("/order-list", s.wrap(s.handleOrderListSubmit))
	brokerID.GET("/holdings", s.wrap(s.handleHoldings))
	brokerID.GET("/positions", s.wrap(s.handlePositions))
	brokerID.GET("/balance", s.wrap(s.handleBalanceHistory))
	brokerID.GET("/open-orders/:market", s.wrap(s.handleOpenOrders))

	return r
}

type paramsKeyType string

const paramsKey paramsKeyType = "tradingflow_path_params"

// wrap adapts net/http handlers to gin, injecting path params into the
// request context.
func (s *Server) wrap(h func(http.ResponseWriter, *http.Request)) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := map[string]string{}
		for _, p := range c.Params {
			m[p.Key] = p.Value
		}
		ctx := context.WithValue(c.Request.Context(), paramsKey, m)
		c.Request = c.Request.WithContext(ctx)
		h(c.Writer, c.Request)
	}
}
