package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"price-history-api/internal/middleware"
	"price-history-api/internal/models"
	"price-history-api/internal/repository"
)

//go:generate mockgen -destination=mock_product_store_test.go -package=handlers . ProductStore

// ProductStore es la persistencia del catálogo que usan los handlers
type ProductStore interface {
	Create(ctx context.Context, product *models.Product) error
	FindAll(ctx context.Context, page, perPage int, search string) ([]models.Product, error)
	FindByID(ctx context.Context, id string) (*models.Product, error)
	Update(ctx context.Context, id string, update *models.ProductUpdate) error
	AddHistory(ctx context.Context, id string, entry *models.PriceEntry) (bool, error)
	RemoveHistory(ctx context.Context, id, historyID string) (bool, error)
	Delete(ctx context.Context, id string) (int64, error)
}

type ProductHandler struct {
	store  ProductStore
	logger *zap.Logger
}

func NewProductHandler(store ProductStore, logger *zap.Logger) *ProductHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHandler{
		store:  store,
		logger: logger.With(zap.String("component", "product_handler")),
	}
}

// Estructuras para respuestas
type MessageResponse struct {
	Message string `json:"message"`
}

type HistoryAddedResponse struct {
	Message  string            `json:"message"`
	Entry    models.PriceEntry `json:"entry"`
	Appended bool              `json:"appended"`
}

// GET /api/products
func (h *ProductHandler) ListProducts(c *gin.Context) {
	const op = "Unable to Get All Products"

	page, perPage, err := repository.ParsePaging(c.Query("page"), c.Query("perPage"))
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	products, err := h.store.FindAll(c.Request.Context(), page, perPage, c.Query("q"))
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	c.JSON(http.StatusOK, products)
}

// GET /api/products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.store.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Unable to Get Product", err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// POST /api/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	const op = "Unable to Create Product"

	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		h.respondError(c, op, &repository.ArgumentError{Message: err.Error()})
		return
	}
	if err := h.store.Create(c.Request.Context(), &product); err != nil {
		h.respondError(c, op, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

// PUT /api/products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	const op = "Unable to Update Product"
	id := c.Param("id")

	var update models.ProductUpdate
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&update); err != nil {
		h.respondError(c, op, &repository.ArgumentError{Message: err.Error()})
		return
	}

	if err := h.store.Update(c.Request.Context(), id, &update); err != nil {
		h.respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Product Updated: " + id})
}

// PUT /api/products/:id/add
func (h *ProductHandler) AddPriceHistory(c *gin.Context) {
	const op = "Unable to Add Price History"
	id := c.Param("id")

	var entry models.PriceEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		h.respondError(c, op, &repository.ArgumentError{Message: err.Error()})
		return
	}

	appended, err := h.store.AddHistory(c.Request.Context(), id, &entry)
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, HistoryAddedResponse{
		Message:  "Price History Added: " + id,
		Entry:    entry,
		Appended: appended,
	})
}

// DELETE /api/products/:id/delete/:historyId
func (h *ProductHandler) DeletePriceHistory(c *gin.Context) {
	historyID := c.Param("historyId")

	if _, err := h.store.RemoveHistory(c.Request.Context(), c.Param("id"), historyID); err != nil {
		h.respondError(c, "Unable to Delete Price History", err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Price History Deleted: " + historyID})
}

// DELETE /api/products/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id := c.Param("id")

	deleted, err := h.store.Delete(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "Unable to Delete Product", err)
		return
	}
	if deleted == 0 {
		h.logger.Debug("delete matched no product", zap.String("id", id))
	}

	c.Status(http.StatusNoContent)
}

// --- Métodos auxiliares ---

// respondError traduce los errores del repositorio a códigos HTTP
func (h *ProductHandler) respondError(c *gin.Context, op string, err error) {
	var (
		argErr *repository.ArgumentError
		valErr *repository.ValidationError
		dupErr *repository.DuplicateKeyError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, MessageResponse{Message: "Product Not Found"})
		h.logRejected(c, op, http.StatusNotFound, err)
		return
	case errors.Is(err, repository.ErrInvalidID), errors.Is(err, repository.ErrInvalidHistoryID),
		errors.As(err, &argErr), errors.As(err, &valErr):
		status = http.StatusBadRequest
	case errors.As(err, &dupErr):
		status = http.StatusConflict
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, MessageResponse{Message: fmt.Sprintf("%s: %v", op, err)})

	if status == http.StatusInternalServerError {
		h.logger.Error(op,
			zap.Error(err),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.Request.URL.Path),
		)
		return
	}
	h.logRejected(c, op, status, err)
}

func (h *ProductHandler) logRejected(c *gin.Context, op string, status int, err error) {
	h.logger.Warn(op,
		zap.Error(err),
		zap.Int("status", status),
		zap.String("request_id", middleware.GetRequestID(c)),
	)
}
