package logging

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nezunotify/notifyctl/internal/util"
	log "github.com/sirupsen/logrus"
)

// relayPrefixes are the routes whose requests get a request ID.
var relayPrefixes = []string{
	"/v1/notify",
	"/v1/status",
}

const skipGinLogKey = "__gin_skip_request_logging__"

// GinLogrusLogger logs one line per relay request with method, path, status,
// latency and client address as fields. Relay routes get a request ID that is
// carried in the request context, so handler logs and the access line share it.
// 5xx responses log at error level and 4xx at warn.
func GinLogrusLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := ""
		if isRelayPath(c.Request.URL.Path) {
			requestID = GenerateRequestID()
			SetGinRequestID(c, requestID)
			c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))
		}

		c.Next()

		if shouldSkipGinRequestLogging(c) {
			return
		}

		path := c.Request.URL.Path
		if raw := util.MaskSensitiveQuery(c.Request.URL.RawQuery); raw != "" {
			path += "?" + raw
		}
		latency := time.Since(start).Truncate(time.Millisecond)
		status := c.Writer.Status()

		fields := log.Fields{
			"method":  c.Request.Method,
			"path":    path,
			"status":  status,
			"latency": latency,
			"client":  c.ClientIP(),
		}
		if requestID != "" {
			fields["request_id"] = requestID
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields["error"] = strings.TrimSpace(errs)
		}
		entry := log.WithFields(fields)

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("relay request")
		case status >= http.StatusBadRequest:
			entry.Warn("relay request")
		default:
			entry.Info("relay request")
		}
	}
}

func isRelayPath(path string) bool {
	for _, prefix := range relayPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// GinLogrusRecovery turns a handler panic into a 500 and logs it with the
// stack. http.ErrAbortHandler is re-raised so net/http drops the connection.
func GinLogrusRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
			panic(http.ErrAbortHandler)
		}

		FromContext(c.Request.Context()).WithFields(log.Fields{
			"panic": recovered,
			"stack": string(debug.Stack()),
			"path":  c.Request.URL.Path,
		}).Error("recovered from panic")

		c.AbortWithStatus(http.StatusInternalServerError)
	})
}

// SkipGinRequestLogging suppresses the access line for the current request.
func SkipGinRequestLogging(c *gin.Context) {
	if c == nil {
		return
	}
	c.Set(skipGinLogKey, true)
}

func shouldSkipGinRequestLogging(c *gin.Context) bool {
	if c == nil {
		return false
	}
	skip, _ := c.Get(skipGinLogKey)
	flag, ok := skip.(bool)
	return ok && flag
}
