package ports

import "github.com/gin-gonic/gin"

type HTTPHandler interface {
	CreateSession(c *gin.Context)
	GetLayout(c *gin.Context)
	UpdateSnapshot(c *gin.Context)
	PinStream(c *gin.Context)
	UnpinStream(c *gin.Context)
	ClearPinnedStreams(c *gin.Context)
	SetFullscreen(c *gin.Context)
	ClearFullscreen(c *gin.Context)
	SetMode(c *gin.Context)
	GetEvents(c *gin.Context)
	CloseSession(c *gin.Context)
}
