package handler

import "github.com/gin-gonic/gin"

const (
	ctxUserID     = "user_id"
	ctxAuthMethod = "auth_method"
)

// Auth methods recorded by the auth middlewares
const (
	AuthSession = "session"
	AuthPlugin  = "plugin"
)

// SetCaller records the authenticated user on the request
func SetCaller(c *gin.Context, userID, method string) {
	c.Set(ctxUserID, userID)
	c.Set(ctxAuthMethod, method)
}

// CallerID is the authenticated user id, "" on public routes
func CallerID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
