// Package item serves the item HTTP API over a store.Table.
package item

import (
	"errors"
	"net/http"

	"github.com/nimburion/itemservice/pkg/controller"
	"github.com/nimburion/itemservice/pkg/observability/logger"
	"github.com/nimburion/itemservice/pkg/server/router"
	"github.com/nimburion/itemservice/pkg/store"
)

// Response bodies.
const (
	Greeting           = "Hello, World!"
	MessageItemCreated = "Item created successfully"
)

// Handler answers GET /, POST /item and GET /item/:id.
type Handler struct {
	table store.Table
	log   logger.Logger
}

// NewHandler creates a Handler backed by table.
func NewHandler(table store.Table, log logger.Logger) *Handler {
	return &Handler{table: table, log: log}
}

// RegisterRoutes mounts the item routes. Global middleware must already be applied to r.
func (h *Handler) RegisterRoutes(r router.Router) {
	r.GET("/", h.Root)
	r.POST("/item", h.Create)
	r.GET("/item/:id", h.Get)
}

// Root answers the liveness greeting without touching the store.
func (h *Handler) Root(c router.Context) error {
	return c.String(http.StatusOK, Greeting)
}

// Create stores the JSON object in the request body unmodified.
func (h *Handler) Create(c router.Context) error {
	var body interface{}
	if err := c.Bind(&body); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return err
		case errors.Is(err, router.ErrUnsupportedMediaType):
			return controller.Error(c, h.log, err)
		case errors.Is(err, router.ErrEmptyBody):
			return controller.Error(c, h.log, controller.NewBadRequestError("request body is empty", nil))
		default:
			return controller.Error(c, h.log, controller.NewBadRequestError("invalid JSON body", err))
		}
	}

	fields, ok := body.(map[string]interface{})
	if !ok {
		return controller.Error(c, h.log, controller.NewBadRequestError("request body must be a JSON object", nil))
	}

	if err := h.table.Put(c.Request().Context(), store.Record(fields)); err != nil {
		return controller.Error(c, h.log, err)
	}
	return controller.Created(c, MessageItemCreated)
}

// Get returns the record stored under the id path parameter.
func (h *Handler) Get(c router.Context) error {
	record, err := h.table.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return controller.Error(c, h.log, err)
	}
	return controller.Success(c, record)
}
