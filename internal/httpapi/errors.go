package httpapi

import (
	"net/http"

	"github.com/cellforge/idp-controlplane/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// errorResponse is the JSON body shape for every non-2xx response. Kind is
// the PlatformError's Kind() so clients can switch on it without parsing
// the message string.
type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Details any    `json:"details,omitempty"`
}

// respondError dispatches a domain error to its HTTP status and body via a
// single type assertion on types.PlatformError, instead of a per-handler
// type switch.
func respondError(c *gin.Context, log *logrus.Logger, err error) {
	if perr, ok := err.(types.PlatformError); ok {
		log.WithFields(logrus.Fields{"kind": perr.Kind(), "path": c.FullPath()}).Warn(perr.Error())
		c.JSON(perr.HTTPStatus(), errorResponse{
			Error:   perr.Error(),
			Kind:    perr.Kind(),
			Details: perr.Details(),
		})
		return
	}
	log.WithField("path", c.FullPath()).Error(err.Error())
	c.JSON(http.StatusInternalServerError, errorResponse{
		Error: err.Error(),
		Kind:  "Internal",
	})
}
