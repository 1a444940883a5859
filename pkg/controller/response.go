package controller

import (
	"net/http"

	"github.com/nimburion/itemservice/pkg/observability/logger"
	"github.com/nimburion/itemservice/pkg/server/router"
)

// MessageResponse carries a human readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// Success sends data as a 200 JSON response.
func Success(c router.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

// Created sends a 201 JSON response {"message": message}.
func Created(c router.Context, message string) error {
	return c.JSON(http.StatusCreated, MessageResponse{Message: message})
}

// Error sends the response MapError selects for err.
// Server faults are logged with the request ID; their cause never reaches the client.
func Error(c router.Context, log logger.Logger, err error) error {
	status, body, fault := MapError(err)
	if fault {
		log.WithContext(c.Request().Context()).Error("request failed",
			"method", c.Request().Method,
			"route", c.Route(),
			"error", err,
		)
	}
	return c.JSON(status, body)
}
