// Package adminapi exposes the administrative JSON API: order listings,
// per-technician reports, technician registration and order completion.
package adminapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/m3rciful/pestbot/core/logger"
	"github.com/m3rciful/pestbot/internal/domain"
)

// Orders is the order service surface used by the API.
type Orders interface {
	List(ctx context.Context, f domain.OrderFilter) ([]domain.OrderView, error)
	Order(ctx context.Context, code string) (domain.OrderView, error)
	Stats(ctx context.Context) ([]domain.TechnicianStats, error)
	Complete(ctx context.Context, code string, technicianID int64, finalPrice float64) (domain.OrderView, error)
}

// Technicians is the directory surface used by the API.
type Technicians interface {
	Register(ctx context.Context, name, contact, credential string) (domain.Technician, error)
	List(ctx context.Context) ([]domain.Technician, error)
}

// Handler serves the admin routes.
type Handler struct {
	orders Orders
	techs  Technicians
}

// NewHandler builds the admin API handler.
func NewHandler(orders Orders, techs Technicians) *Handler {
	return &Handler{orders: orders, techs: techs}
}

// Router builds the gin engine. An empty token leaves the API open, which is
// only meant for listening on loopback.
func (h *Handler) Router(token string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api", BearerAuth(token))
	api.GET("/orders", h.ListOrders)
	api.GET("/orders/:code", h.GetOrder)
	api.POST("/orders/:code/complete", h.CompleteOrder)
	api.GET("/technicians", h.ListTechnicians)
	api.POST("/technicians", h.RegisterTechnician)
	api.GET("/technicians/stats", h.Stats)
	return r
}

// ListOrders handles GET /api/orders?technician=ID&status=S.
func (h *Handler) ListOrders(c *gin.Context) {
	var f domain.OrderFilter
	if raw := c.Query("technician"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid technician id"})
			return
		}
		f.TechnicianID = id
	}
	f.Status = domain.OrderStatus(strings.TrimSpace(c.Query("status")))

	orders, err := h.orders.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.OrderView{}
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrder handles GET /api/orders/:code.
func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.orders.Order(c.Request.Context(), orderCode(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type completeRequest struct {
	FinalPrice float64 `json:"final_price" binding:"required"`
}

// CompleteOrder handles POST /api/orders/:code/complete.
func (h *Handler) CompleteOrder(c *gin.Context) {
	var body completeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "final_price is required"})
		return
	}
	o, err := h.orders.Complete(c.Request.Context(), orderCode(c), 0, body.FinalPrice)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// ListTechnicians handles GET /api/technicians.
func (h *Handler) ListTechnicians(c *gin.Context) {
	techs, err := h.techs.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if techs == nil {
		techs = []domain.Technician{}
	}
	c.JSON(http.StatusOK, techs)
}

type registerRequest struct {
	Name       string `json:"name" binding:"required"`
	Contact    string `json:"contact" binding:"required"`
	Credential string `json:"credential"`
}

// RegisterTechnician handles POST /api/technicians. The credential is only
// ever returned here.
func (h *Handler) RegisterTechnician(c *gin.Context) {
	var body registerRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and contact are required"})
		return
	}
	t, err := h.techs.Register(c.Request.Context(), body.Name, body.Contact, body.Credential)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"technician": t, "credential": t.Credential})
}

// Stats handles GET /api/technicians/stats.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.orders.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if stats == nil {
		stats = []domain.TechnicianStats{}
	}
	c.JSON(http.StatusOK, stats)
}

func orderCode(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("code")))
}

// BearerAuth rejects requests without "Authorization: Bearer <token>".
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		scheme, got, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func writeError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.HTTP.ErrorContext(c.Request.Context(), "request failed",
			slog.String("event", "http.error"),
			slog.String("status", "fail"),
			slog.String("path", c.FullPath()),
			slog.String("err", err.Error()),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func errorStatus(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateCredential),
		errors.Is(err, domain.ErrDuplicateContact),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoTechnicianAvailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if rid == "" {
			rid = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		}
		m := logger.Meta{RID: logger.SanitizeLimit(rid, 64)}
		m.TraceID, m.SpanID, _ = parseTraceparent(c.GetHeader("traceparent"))
		ctx := logger.WithMeta(c.Request.Context(), m)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", m.RID)

		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.HTTP.LogAttrs(ctx, level, "request",
			slog.String("event", "http.request"),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("code", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// parseTraceparent reads a W3C traceparent header: version-trace-span-flags.
func parseTraceparent(h string) (traceID, spanID string, ok bool) {
	parts := strings.Split(strings.TrimSpace(h), "-")
	if len(parts) != 4 || len(parts[1]) != 32 || len(parts[2]) != 16 {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// Serve runs engine on listen until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, listen string, engine http.Handler) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	logger.HTTP.Info("admin api listening",
		slog.String("event", "http.listen"),
		slog.String("status", "ok"),
		slog.String("listen", listen),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
