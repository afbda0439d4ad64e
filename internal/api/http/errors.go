package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/filemanager/internal/api/middleware"
	"github.com/GriffinCanCode/filemanager/internal/shared/fserr"
)

// Titles for failures raised by the transport itself
const (
	TitleInvalidMode    = "MODE_ERROR"
	TitleMissingParam   = "MISSING_PARAMETER"
	TitleInvalidRequest = "INVALID_REQUEST"
)

// ErrorObject is one entry of an error envelope
type ErrorObject struct {
	ID    string    `json:"id"`
	Code  string    `json:"code"`
	Title string    `json:"title"`
	Meta  ErrorMeta `json:"meta"`
}

// ErrorMeta carries the arguments of an error
type ErrorMeta struct {
	Arguments []string `json:"arguments"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Errors []ErrorObject `json:"errors"`
}

// DataResponse is the body of every successful JSON request
type DataResponse struct {
	Data any `json:"data"`
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind fserr.Kind) int {
	switch kind {
	case fserr.KindInvalidPath,
		fserr.KindForbiddenName,
		fserr.KindForbiddenCharacter,
		fserr.KindEmptyPayload,
		fserr.KindDirectoryRequired,
		fserr.KindFileRequired,
		fserr.KindDirectoryEmpty,
		fserr.KindArchive:
		return http.StatusBadRequest
	case fserr.KindForbidden:
		return http.StatusForbidden
	case fserr.KindNotFound:
		return http.StatusNotFound
	case fserr.KindAlreadyExists:
		return http.StatusConflict
	case fserr.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// respond writes a success envelope
func respond(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// fail writes the error envelope for an engine error
func (h *Handlers) fail(c *gin.Context, err error) {
	kind := fserr.KindOf(err)
	status := StatusFor(kind)

	if status >= http.StatusInternalServerError {
		// Only server-side failures carry detail worth keeping.
		_ = c.Error(err)
		var fe *fserr.Error
		if !errors.As(err, &fe) || fe.Err != nil {
			h.logger.Error("Operation failed",
				zap.String("mode", c.Query("mode")),
				zap.String("request_id", middleware.GetRequestID(c)),
				zap.Error(err),
			)
		}
	}

	abort(c, status, string(kind), fserr.ArgsOf(err)...)
}

// abort writes an error envelope with an explicit status and title
func abort(c *gin.Context, status int, title string, args ...string) {
	if args == nil {
		args = []string{}
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Errors: []ErrorObject{{
			ID:    "server",
			Code:  strconv.Itoa(status),
			Title: title,
			Meta:  ErrorMeta{Arguments: args},
		}},
	})
}
