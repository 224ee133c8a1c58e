package rest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/sweetrise/bakery-pos/internal/domain"
	"github.com/sweetrise/bakery-pos/internal/service/coordinator"
)

const (
	headerIdempotencyKey  = "Idempotency-Key"
	defaultListLimit      = 50
	maxListLimit          = 200
	defaultIdempotencyTTL = 24 * time.Hour
)

// Handler обслуживает HTTP API заказов поверх координатора.
// Повторная отправка POST /orders/create с тем же Idempotency-Key
// возвращает сохранённый ответ вместо второго заказа.
type Handler struct {
	coordinator    *coordinator.Coordinator
	idempotency    domain.IdempotencyRepository
	validate       *validatorv10.Validate
	logger         *log.Entry
	idempotencyTTL time.Duration
}

// NewHandler создаёт HTTP-обработчик. idempotency может быть nil,
// тогда заголовок Idempotency-Key игнорируется.
func NewHandler(c *coordinator.Coordinator, idempotency domain.IdempotencyRepository, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "rest")
	}
	return &Handler{
		coordinator:    c,
		idempotency:    idempotency,
		validate:       validatorv10.New(),
		logger:         logger,
		idempotencyTTL: defaultIdempotencyTTL,
	}
}

// RegisterRoutes подключает маршруты API к роутеру.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/orders", h.listOrders)
	r.POST("/orders/create", h.createOrder)
	r.GET("/orders/:id", h.getOrder)
	r.PUT("/orders/:id", h.updateOrder)
	r.DELETE("/orders/:id", h.deleteOrder)
}

func (h *Handler) listOrders(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = parsed
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	views, err := h.coordinator.ListOrders(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	orders := make([]orderResponse, 0, len(views))
	for _, view := range views {
		orders = append(orders, toOrderResponse(view))
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	view, err := h.coordinator.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(view))
}

func (h *Handler) createOrder(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body"})
		return
	}

	req, ok := h.parseOrderRequest(c, raw)
	if !ok {
		return
	}

	key := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
	if h.idempotency == nil {
		key = ""
	}
	if key != "" {
		if done := h.claimIdempotencyKey(c, key, requestHash(raw)); done {
			return
		}
	}

	result, err := h.coordinator.CreateOrder(c.Request.Context(), req.toCreateInput())
	if err != nil {
		if key != "" {
			if markErr := h.idempotency.MarkFailed(key, nil, 0); markErr != nil {
				h.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to mark idempotency key")
			}
		}
		h.writeError(c, err)
		return
	}

	body, err := json.Marshal(mutationResponse{Success: true, OrderID: result.OrderID, OrderNumber: result.OrderNumber})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if key != "" {
		if markErr := h.idempotency.MarkDone(key, body, http.StatusCreated); markErr != nil {
			h.logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotent response")
		}
	}
	c.Data(http.StatusCreated, "application/json", body)
}

func (h *Handler) updateOrder(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body"})
		return
	}

	req, ok := h.parseOrderRequest(c, raw)
	if !ok {
		return
	}

	result, err := h.coordinator.UpdateOrder(c.Request.Context(), c.Param("id"), req.toUpdateInput())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mutationResponse{Success: true, OrderID: result.OrderID, OrderNumber: result.OrderNumber})
}

func (h *Handler) deleteOrder(c *gin.Context) {
	if err := h.coordinator.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
}

// parseOrderRequest разбирает и валидирует тело запроса; при ошибке
// пишет 400 и возвращает ok=false.
func (h *Handler) parseOrderRequest(c *gin.Context, raw []byte) (OrderRequest, bool) {
	var req OrderRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "detail": err.Error()})
		return OrderRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation_failed",
			"fields": validationErrorsToMap(err),
		})
		return OrderRequest{}, false
	}
	return req, true
}

// claimIdempotencyKey регистрирует ключ за текущим запросом.
// Возвращает true, если ответ уже записан и обработку надо прервать.
func (h *Handler) claimIdempotencyKey(c *gin.Context, key, hash string) bool {
	_, err := h.idempotency.CreateProcessing(key, hash, time.Now().UTC().Add(h.idempotencyTTL))
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency_key_reused"})
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		h.replayIdempotentResponse(c, key)
	default:
		h.logger.WithError(err).WithField("idempotency_key", key).Error("idempotency check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
	}
	return true
}

func (h *Handler) replayIdempotentResponse(c *gin.Context, key string) {
	record, err := h.idempotency.Get(key)
	if err != nil {
		h.logger.WithError(err).WithField("idempotency_key", key).Error("idempotency lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
		return
	}

	switch record.Status {
	case domain.IdempotencyStatusDone:
		c.Data(record.HTTPStatus, "application/json", record.ResponseBody)
	case domain.IdempotencyStatusProcessing:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress"})
	default:
		c.JSON(http.StatusConflict, gin.H{"error": "previous_attempt_failed"})
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "insufficient_stock",
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "detail": err.Error()})
	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "detail": err.Error()})
	case domain.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "detail": err.Error()})
	case domain.IsBusy(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "busy", "detail": err.Error()})
	default:
		h.logger.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Error()
		}
		return out
	}
	out["error"] = err.Error()
	return out
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
