package handlers

import (
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	message := ""
	if err != nil {
		message = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Code: code, Message: message}})
}
