package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cryptodigest/internal/dispatch"
	"cryptodigest/internal/market"
	"cryptodigest/internal/subscriber"
	"cryptodigest/pkg/coingecko"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Dispatcher runs one digest send.
type Dispatcher interface {
	RunOnce(ctx context.Context) (dispatch.Report, error)
}

// PriceSource fetches a snapshot on demand, reporting notices (rate limit
// banners and the like) to n.
type PriceSource func(ctx context.Context, n coingecko.Notifier) (market.Snapshot, error)

// Server is the single-page front end plus its JSON and websocket API.
type Server struct {
	subscribers *subscriber.Service
	dispatcher  Dispatcher
	prices      *market.LatestStore
	fetch       PriceSource
	scheduleAt  string
	logger      *zap.Logger
	now         func() time.Time

	upgrader websocket.Upgrader
	engine   *gin.Engine

	stopOnce sync.Once
	stop     chan struct{}
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithPriceSource enables on-demand fetching when no snapshot is stored yet.
func WithPriceSource(fetch PriceSource) Option {
	return func(s *Server) { s.fetch = fetch }
}

// WithScheduleAt sets the send time shown on the page.
func WithScheduleAt(at string) Option {
	return func(s *Server) { s.scheduleAt = at }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func NewServer(subscribers *subscriber.Service, dispatcher Dispatcher, prices *market.LatestStore, opts ...Option) *Server {
	s := &Server{
		subscribers: subscribers,
		dispatcher:  dispatcher,
		prices:      prices,
		logger:      zap.NewNop(),
		now:         time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		stop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.logRequestMiddleware)
	router.SetHTMLTemplate(pageTemplate)

	router.GET("/", s.index)
	router.POST("/subscribe", s.subscribeForm)
	router.POST("/send", s.sendForm)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws/prices", s.streamPrices)

	api := router.Group("/api", cors.Default())
	api.GET("/prices", s.getPrices)
	api.GET("/subscribers", s.listSubscribers)
	api.POST("/subscribers", s.addSubscriber)
	api.POST("/dispatch", s.runDispatch)

	return router
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	// hijacked websocket connections are not closed by Shutdown
	s.stopOnce.Do(func() { close(s.stop) })

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	s.logger.Info("web server stopped")
	return nil
}

func (s *Server) logRequestMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("http request",
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("duration", time.Since(start)),
	)
}

func returnErrorJSON(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

// currentPrices returns the stored snapshot, or fetches one when nothing is
// stored yet. Notices raised by that fetch are returned for display.
func (s *Server) currentPrices(ctx context.Context) (market.PriceUpdate, []coingecko.Notice, error) {
	if latest, ok := s.prices.Get(); ok {
		return latest, nil, nil
	}
	if s.fetch == nil {
		return market.PriceUpdate{}, nil, errPricesUnavailable
	}

	collector := &coingecko.NoticeCollector{}
	snapshot, err := s.fetch(ctx, collector)
	if err != nil {
		return market.PriceUpdate{}, collector.Notices(), err
	}
	fetchedAt := s.now()
	s.prices.Set(snapshot, fetchedAt)
	return market.PriceUpdate{Snapshot: snapshot, FetchedAt: fetchedAt}, collector.Notices(), nil
}

var errPricesUnavailable = errors.New("prices not available yet")
