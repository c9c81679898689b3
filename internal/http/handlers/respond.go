package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"moonyetis/internal/domain"
	"moonyetis/internal/logger"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func ok(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(status, body)
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

var errorClasses = []struct {
	class  error
	status int
}{
	{domain.ErrValidation, http.StatusBadRequest},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrExhausted, http.StatusServiceUnavailable},
}

// failErr maps a service error to a status and a client-safe message.
// Anything outside the domain taxonomy is logged and reported as 500.
func failErr(c *gin.Context, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		fail(c, http.StatusBadRequest, verr.Error())
		return
	}
	for _, ec := range errorClasses {
		if errors.Is(err, ec.class) {
			fail(c, ec.status, publicMessage(err, ec.class))
			return
		}
	}
	logger.WithContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
	fail(c, http.StatusInternalServerError, "internal server error")
}

// publicMessage drops the class prefix, "conflict: username already taken"
// becomes "username already taken".
func publicMessage(err, class error) string {
	msg := err.Error()
	prefix := class.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func pageLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return defaultPageLimit
	}
	return min(n, maxPageLimit)
}

func requireUser(c *gin.Context) (int64, bool) {
	id, found := getUserID(c)
	if !found {
		fail(c, http.StatusUnauthorized, "unauthorized")
	}
	return id, found
}
