package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/storyforge/internal/errs"
)

// statusClientClosed is the de facto status for a client that went away
// before the response was written.
const statusClientClosed = 499

var statusByKind = map[errs.Kind]int{
	errs.KindValidation:   http.StatusBadRequest,
	errs.KindNotFound:     http.StatusNotFound,
	errs.KindConfig:       http.StatusServiceUnavailable,
	errs.KindProvider:     http.StatusServiceUnavailable,
	errs.KindRateLimited:  http.StatusTooManyRequests,
	errs.KindConflict:     http.StatusConflict,
	errs.KindUnauthorized: http.StatusUnauthorized,
	errs.KindCanceled:     statusClientClosed,
}

func statusFor(err error) int {
	if code, ok := statusByKind[errs.KindOf(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// abortWithError writes the JSON error body for err. Only caller-safe
// messages leave the process; internal detail goes to the log.
func (s *Server) abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": errs.Message(err)}

	switch errs.KindOf(err) {
	case errs.KindValidation:
		if fields := errs.FieldsOf(err); len(fields) > 0 {
			body["fields"] = fields
		}
	case errs.KindRateLimited:
		secs := int(errs.RetryAfterOf(err).Seconds())
		c.Header("Retry-After", strconv.Itoa(max(secs, 1)))
	case errs.KindCanceled:
		s.logger.Debug("request canceled", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	case errs.KindInternal:
		s.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	default:
		if status >= http.StatusInternalServerError {
			s.logger.Warn("request unavailable", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		}
	}

	c.AbortWithStatusJSON(status, body)
}
