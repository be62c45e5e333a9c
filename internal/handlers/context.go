package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const (
	UserIDKey             = "user_id"
	DefaultRequestTimeout = 10 * time.Second
)

// currentUser reads the authenticated user set by the authz middleware. Both
// uuid.UUID and string values are accepted.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	switch v := value.(type) {
	case uuid.UUID:
		return v, !v.IsNil()
	case string:
		id, err := uuid.FromString(v)
		return id, err == nil && !id.IsNil()
	}
	return uuid.Nil, false
}

// requireUser aborts with 401 when the request carries no user.
func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return uuid.Nil, false
	}
	return userID, true
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func requestContext(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}
