package common

import "github.com/gin-gonic/gin"

// OK writes data as the response body unchanged. The relay surface is
// consumed by the mobile client, which expects bare objects.
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// Fail writes {"error": msg, "code": code}.
func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"error": msg,
		"code":  code,
	})
}
