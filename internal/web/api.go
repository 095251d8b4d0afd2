package web

import (
	"net/http"

	"cryptodigest/internal/subscriber"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type subscribeRequest struct {
	Email string `json:"email"`
}

func (s *Server) getPrices(c *gin.Context) {
	latest, notices, err := s.currentPrices(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error":   err.Error(),
			"notices": notices,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"prices":     latest.Snapshot,
		"fetched_at": latest.FetchedAt,
		"notices":    notices,
	})
}

func (s *Server) listSubscribers(c *gin.Context) {
	subscribers, err := s.subscribers.List(c.Request.Context())
	if err != nil {
		returnErrorJSON(c, http.StatusInternalServerError, err)
		return
	}
	if subscribers == nil {
		subscribers = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"subscribers": subscribers})
}

func (s *Server) addSubscriber(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		returnErrorJSON(c, http.StatusBadRequest, err)
		return
	}

	outcome, err := s.subscribers.Subscribe(c.Request.Context(), req.Email)
	if err != nil {
		s.logger.Error("subscribe failed", zap.Error(err))
		returnErrorJSON(c, http.StatusInternalServerError, err)
		return
	}

	switch outcome {
	case subscriber.InvalidEmail:
		c.JSON(http.StatusBadRequest, gin.H{"outcome": outcome, "message": "Please enter a valid email address."})
	case subscriber.AlreadySubscribed:
		c.JSON(http.StatusOK, gin.H{"outcome": outcome, "message": "You are already subscribed!"})
	default:
		c.JSON(http.StatusCreated, gin.H{"outcome": outcome, "message": "Successfully subscribed to daily cryptocurrency updates!"})
	}
}

func (s *Server) runDispatch(c *gin.Context) {
	report, err := s.dispatcher.RunOnce(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}
