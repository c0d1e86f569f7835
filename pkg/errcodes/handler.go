package errcodes

import (
	"net/http"

	"github.com/iancoleman/strcase"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/errutils"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

// Handle is an Echo error handler. Errors from this package keep their HTTP
// code, echo errors keep theirs, and anything else is a 500.
func (h *Handler) Handle(err error, c echo.Context) {
	log := logger.FromEchoContext(c)
	if errutils.IsIgnorableErr(err) {
		log.Err(err).Warn("broken pipe")
		return
	}

	body := toBody(err)
	if body.StatusCode >= http.StatusInternalServerError {
		log.Err(err).Error("server error")
	}

	resp := map[string]errorBody{"error": body}
	if err := c.JSON(body.StatusCode, resp); err != nil {
		log.Err(errors.WithStack(err)).Error("error handler json error")
	}
}

func toBody(err error) errorBody {
	var e *Error
	if errors.As(err, &e) {
		return errorBody{Code: e.Code, Message: e.Message, StatusCode: e.HTTPCode}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		body := errorBody{Code: "internal_server_error", Message: http.StatusText(he.Code), StatusCode: he.Code}
		if m, ok := he.Message.(string); ok {
			body.Message = m
			body.Code = strcase.ToSnake(m)
		}
		return body
	}

	return errorBody{
		Code:       "internal_server_error",
		Message:    "Internal Server Error",
		StatusCode: http.StatusInternalServerError,
	}
}
