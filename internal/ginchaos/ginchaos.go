// Package ginchaos adapts a chaos.Gate to gin's handler chain.
package ginchaos

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smart-mcp-proxy/chaosgate/internal/chaos"
)

// Middleware runs g in front of the rest of the gin chain. A failed decision
// aborts the chain with the synthetic 500; a forwarded one calls c.Next().
// An aborted decision stops the chain with an empty 499, since the client is
// gone and gin would otherwise write an implicit 200.
func Middleware(g *chaos.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		outcome, _ := g.Decide(c.Request.Context())
		switch outcome {
		case chaos.OutcomeFailed:
			c.AbortWithStatusJSON(http.StatusInternalServerError, chaos.Failure())
		case chaos.OutcomeForwarded:
			c.Next()
		default:
			c.AbortWithStatus(chaos.StatusClientClosedRequest)
		}
	}
}
