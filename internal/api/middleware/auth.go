package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// BidderKey is the echo context key holding the authenticated bidder id.
const BidderKey = "bidder_id"

// Auth copies the bidder identity from header into the request context. A missing header is
// not rejected here: the place-bid path reports UNAUTHENTICATED in its own validation order.
func Auth(header string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := strings.TrimSpace(c.Request().Header.Get(header)); id != "" {
				c.Set(BidderKey, id)
			}
			return next(c)
		}
	}
}

// BidderID returns the identity stored by Auth, or "".
func BidderID(c echo.Context) string {
	id, _ := c.Get(BidderKey).(string)
	return id
}
