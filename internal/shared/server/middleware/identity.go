package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey  = "userId"
	isGuestKey = "isGuest"

	// AnonymousUser owns analyses submitted without any identity header.
	AnonymousUser = "anonymous"

	maxIdentityLen = 128
)

// Identity resolves the caller from X-User-Id or X-Guest-Id and stores it in
// context. Guests are namespaced as "guest:<id>". Requests without either
// header share the anonymous history.
//
// The headers are not authenticated: any client can claim any ID and read that
// user's analyses. Deploy behind a gateway that sets X-User-Id from a verified
// session and strips client-supplied values, or treat histories as public.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		if userID := cleanIdentity(c.GetHeader("X-User-Id")); userID != "" {
			c.Set(userIDKey, userID)
			c.Set(isGuestKey, false)
			c.Next()
			return
		}
		if guestID := cleanIdentity(c.GetHeader("X-Guest-Id")); guestID != "" {
			c.Set(userIDKey, "guest:"+guestID)
			c.Set(isGuestKey, true)
			c.Next()
			return
		}

		c.Set(userIDKey, AnonymousUser)
		c.Set(isGuestKey, true)
		c.Next()
	}
}

func cleanIdentity(raw string) string {
	id := strings.TrimSpace(raw)
	if len(id) > maxIdentityLen {
		return ""
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return ""
		}
	}
	return id
}

// UserIDFromContext fetches the user ID set by the identity middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// IsGuest reports whether the caller was identified only by a guest header or
// not at all.
func IsGuest(c *gin.Context) bool {
	if c == nil {
		return true
	}
	return c.GetBool(isGuestKey)
}
