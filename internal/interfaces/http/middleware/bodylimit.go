package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tffhost/backend/internal/interfaces/http/dto"
)

// BodyLimit returns a middleware that limits request body size. Uploaded agreement
// documents are the largest bodies the API accepts.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeTooLarge, "Request body exceeds maximum allowed size", GetRequestID(c)))
			return
		}

		// chunked bodies have no content length
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
