// Package server exposes the paywall core over HTTP. Content bytes are
// never served here; the gated route returns listing metadata only and
// delegates the trust decision to the credential validator.
package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	paywall402 "github.com/paywall402/paywall402"
	"github.com/paywall402/paywall402/logger"
	paytypes "github.com/paywall402/paywall402/types"
	"github.com/paywall402/paywall402/utils"
)

type Server struct {
	paywall *paywall402.Paywall
	log     logger.Logger
}

func New(paywall *paywall402.Paywall, log logger.Logger) *Server {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Server{paywall: paywall, log: log}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/content", s.createListing)
		api.GET("/content/:id/challenge", s.getChallenge)
		api.POST("/verify", s.verifyPayment)
		api.GET("/content/:id", s.getContent)
		api.DELETE("/content/:id", s.deleteListing)
	}

	return r
}

func (s *Server) createListing(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req, err := utils.ParseCreateListingRequest(body)
	if err != nil {
		s.writeError(c, err)
		return
	}

	listing, err := s.paywall.CreateListing(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, listing)
}

func (s *Server) getChallenge(c *gin.Context) {
	ch, err := s.paywall.CreateChallenge(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ch)
}

func (s *Server) verifyPayment(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req, err := utils.ParseVerifyPaymentRequest(body)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp, err := s.paywall.VerifyPayment(c.Request.Context(), req)
	if err != nil {
		// Infrastructure failure: the whole attempt is retryable.
		s.log.Error("verification attempt failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "verification temporarily unavailable",
			"retryable": true,
		})
		return
	}

	if !resp.Verified {
		c.JSON(http.StatusPaymentRequired, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// getContent is the access-gated fetch. Any credential failure returns
// a generic denial; which check failed is never leaked.
func (s *Server) getContent(c *gin.Context) {
	contentID := c.Param("id")

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access denied"})
		return
	}

	claims, err := s.paywall.ValidateAccess(token, contentID)
	if err != nil {
		s.log.Warn("access denied", map[string]any{"contentId": contentID})
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	listing, err := s.paywall.GetListing(c.Request.Context(), contentID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if err := s.paywall.RecordView(c.Request.Context(), contentID); err != nil {
		s.log.Warn("failed to record view", map[string]any{"contentId": contentID})
	}

	c.JSON(http.StatusOK, gin.H{
		"content": listing,
		"payer":   claims.PayerAddress,
	})
}

func (s *Server) deleteListing(c *gin.Context) {
	err := s.paywall.DeleteListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// bearerToken extracts the credential from the Authorization header or
// the token query parameter.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.Split(header, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

func (s *Server) writeError(c *gin.Context, err error) {
	var pwErr *paytypes.PaywallError
	if errors.As(err, &pwErr) {
		status := http.StatusBadRequest
		switch pwErr.Code {
		case paytypes.ErrCodeContentNotFound:
			status = http.StatusNotFound
		case paytypes.ErrCodeContentExpired:
			status = http.StatusGone
		case paytypes.ErrCodeLedgerUnavailable, paytypes.ErrCodeStorageError:
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": pwErr.Message, "code": pwErr.Code})
		return
	}

	if errors.Is(err, paytypes.ErrListingNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "content not found"})
		return
	}

	s.log.Error("request failed", map[string]any{"error": err.Error()})
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
