package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tmladenov/exchange/internal/api/dto"
	"github.com/tmladenov/exchange/internal/core"
	"github.com/tmladenov/exchange/internal/domain"
	"github.com/tmladenov/exchange/internal/middleware"
)

type HTTPServer struct {
	eng       *core.Engine
	log       *slog.Logger
	rateLimit time.Duration
}

func NewHTTPServer(eng *core.Engine, log *slog.Logger, rateLimit time.Duration) *HTTPServer {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPServer{eng: eng, log: log, rateLimit: rateLimit}
}

func (s *HTTPServer) Router() *gin.Engine {
	r := gin.Default()

	rl := middleware.NewRateLimiter(s.rateLimit)
	r.Use(rl.Middleware())

	orders := r.Group("/api/exchange/orders")
	orders.POST("", s.placeOrder)
	orders.GET("", s.listOrders)
	orders.GET("/:id", s.getOrder)

	r.GET("/api/exchange/order-book/aggregated", s.getAggregatedBook)

	return r
}

func (s *HTTPServer) Run(addr string) error {
	return s.Router().Run(addr)
}

func (s *HTTPServer) placeOrder(c *gin.Context) {
	var req dto.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	direction, ok := domain.ParseDirection(req.Direction)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid direction: " + req.Direction})
		return
	}

	res, err := s.eng.PlaceOrder(c.Request.Context(), req.ID, req.Amount, req.Price, direction)
	if err != nil {
		s.renderError(c, err)
		return
	}

	resp := dto.PlaceOrderResponse{
		Created: res.Created,
		Merged:  res.Merged,
		Match:   dto.FromMatch(res.Match),
	}
	if res.Created {
		resp.Message = "No match! New order was created"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) getOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	details, err := s.eng.FindOrder(c.Request.Context(), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GetOrderResponse{
		Order:   dto.FromOrder(details.Order),
		Matches: dto.FromMatches(details.Matches),
	})
}

func (s *HTTPServer) listOrders(c *gin.Context) {
	direction, ok := domain.ParseDirection(c.Query("direction"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order direction"})
		return
	}
	statuses, ok := dto.ParseStatusList(c.Query("status"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order status"})
		return
	}

	orders, err := s.eng.FindOrdersByDirectionAndStatus(c.Request.Context(), direction, statuses)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListOrdersResponse{Orders: dto.FromOrders(orders)})
}

func (s *HTTPServer) getAggregatedBook(c *gin.Context) {
	levels, err := strconv.Atoi(c.DefaultQuery("levels", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid levels"})
		return
	}
	agg, err := s.eng.FindAggregatedLevels(c.Request.Context(), levels)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, agg)
}

func (s *HTTPServer) renderError(c *gin.Context, err error) {
	switch {
	case domain.IsInvalidInput(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case domain.IsRetriable(err):
		s.log.Error("request failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporary failure, retry"})
	default:
		s.log.Error("request failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
