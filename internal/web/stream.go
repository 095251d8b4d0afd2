package web

import (
	"time"

	"cryptodigest/internal/market"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// PriceMessage is what /ws/prices pushes on connect and after each refresh.
type PriceMessage struct {
	Type      string      `json:"type"`
	Assets    []priceView `json:"assets"`
	FetchedAt time.Time   `json:"fetched_at"`
}

func priceMessage(u market.PriceUpdate) PriceMessage {
	return PriceMessage{Type: "prices", Assets: priceViews(u.Snapshot), FetchedAt: u.FetchedAt}
}

// streamPrices upgrades to a websocket and pushes every price update until
// the client goes away or the server stops.
func (s *Server) streamPrices(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.prices.Subscribe()
	defer unsubscribe()

	if latest, ok := s.prices.Get(); ok {
		if err := s.writePrices(conn, latest); err != nil {
			return
		}
	}

	// Reads only detect the peer closing; clients send nothing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-s.stop:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case u := <-updates:
			if err := s.writePrices(conn, u); err != nil {
				return
			}
		}
	}
}

func (s *Server) writePrices(conn *websocket.Conn, u market.PriceUpdate) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(priceMessage(u)); err != nil {
		s.logger.Debug("websocket write failed", zap.Error(err))
		return err
	}
	return nil
}
