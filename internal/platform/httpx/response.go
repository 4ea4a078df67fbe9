package httpx

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"ATLAS-backend/internal/platform/apperr"
)

type errorDTO struct {
	Error struct {
		Code    apperr.Code `json:"code"`
		Reason  string      `json:"reason,omitempty"`
		Message string      `json:"message"`
	} `json:"error"`
}

func errorBody(code apperr.Code, reason, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Reason = reason
	e.Error.Message = msg
	return e
}

// RespondError は APIError をそのまま返し、それ以外は INTERNAL に丸める。
func RespondError(c *gin.Context, err error) {
	var api *apperr.APIError
	if errors.As(err, &api) {
		c.JSON(apperr.ToHTTPStatus(api), errorBody(api.Code, api.Reason, api.Message))
		return
	}
	log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, errorBody(apperr.CodeInternal, "", "internal error"))
}

func RespondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody(apperr.CodeInvalidArgument, "INVALID_REQUEST", FormatBindingError(err)))
}
