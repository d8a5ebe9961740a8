package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"parts-inventory/internal/gateway/clients"
	"parts-inventory/internal/models"
	parts "parts-inventory/internal/services/parts/handler"
)

// PartsService is what the pages need from the parts layer.
type PartsService interface {
	ListParts(ctx context.Context) ([]models.Part, error)
	GetPart(ctx context.Context, id models.ID) (models.Part, error)
	SearchParts(ctx context.Context, params models.PartSearchParams) (parts.SearchOutcome, error)
	WatchParts(ctx context.Context, fn func([]models.Part)) (func(), error)
	CreatePart(ctx context.Context, in models.PartCreateInput) (models.Part, error)
	UpdatePart(ctx context.Context, id models.ID, in models.PartUpdateInput) (models.Part, error)
	DeletePart(ctx context.Context, id models.ID) error
}

type PartsHTTPHandler struct {
	service PartsService
	logger  *zap.Logger
}

func NewPartsHTTPHandler(service PartsService, logger *zap.Logger) *PartsHTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PartsHTTPHandler{
		service: service,
		logger:  logger,
	}
}

// --- Views ---

type LocationView struct {
	Aisle int         `json:"aisle"`
	Side  models.Side `json:"side"`
	Level int         `json:"level"`
}

// PartView is a part as the pages render it.
type PartView struct {
	ID               models.ID          `json:"id"`
	Name             string             `json:"name"`
	SKU              string             `json:"sku"`
	Quantity         int                `json:"quantity"`
	StockStatus      models.StockStatus `json:"stockStatus"`
	StockStatusLabel string             `json:"stockStatusLabel"`
	Location         LocationView       `json:"location"`
	LocationLabel    string             `json:"locationLabel"`
	Description      *string            `json:"description,omitempty"`
	Category         *string            `json:"category,omitempty"`
	Price            *models.Price      `json:"price,omitempty"`
	Supplier         *string            `json:"supplier,omitempty"`
	CreatedAt        *models.Timestamp  `json:"createdAt,omitempty"`
	UpdatedAt        *models.Timestamp  `json:"updatedAt,omitempty"`
}

func NewPartView(p models.Part) PartView {
	status := p.StockStatus()
	return PartView{
		ID:               p.ID,
		Name:             p.Name,
		SKU:              p.SKU,
		Quantity:         p.Quantity,
		StockStatus:      status,
		StockStatusLabel: status.Label(),
		Location: LocationView{
			Aisle: p.Level.AisleNumber(),
			Side:  p.Level.Side(),
			Level: p.Level.LevelNumber,
		},
		LocationLabel: p.LocationLabel(),
		Description:   p.Description,
		Category:      p.Category,
		Price:         p.Price,
		Supplier:      p.Supplier,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func partViews(ps []models.Part) []PartView {
	views := make([]PartView, len(ps))
	for i, p := range ps {
		views[i] = NewPartView(p)
	}
	return views
}

// --- Helpers ---

func (s *PartsHTTPHandler) success(c *gin.Context, code int, data interface{}) {
	c.JSON(code, gin.H{
		"success": true,
		"data":    data,
	})
}

func (s *PartsHTTPHandler) error(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"success": false,
		"message": message,
	})
}

// fail renders err with the status its kind maps to.
func (s *PartsHTTPHandler) fail(c *gin.Context, err error) {
	code := StatusFor(err)
	body := gin.H{
		"success": false,
		"message": clients.UserMessage(err),
	}
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		body["errors"] = apiErr.Fields
	}
	if code >= http.StatusInternalServerError {
		s.logger.Error("Parts request failed", zap.String("path", c.FullPath()), zap.Int("status", code), zap.Error(err))
	}
	c.JSON(code, body)
}

// StatusFor maps the client error taxonomy onto gateway status codes.
func StatusFor(err error) int {
	var apiErr *clients.APIError
	switch {
	case errors.Is(err, clients.ErrMissingID):
		return http.StatusBadRequest
	case errors.Is(err, clients.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, clients.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &apiErr) && apiErr.Timeout:
		return http.StatusGatewayTimeout
	case errors.Is(err, clients.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func partID(c *gin.Context) models.ID {
	return models.ID(strings.TrimSpace(c.Param("id")))
}

// --- Part endpoints ---

// ListParts serves the list page: the cached list filtered and sorted
// locally.
func (s *PartsHTTPHandler) ListParts(c *gin.Context) {
	filter := models.PartFilter{
		Query:    c.Query("q"),
		Category: c.Query("category"),
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseStockStatus(raw)
		if !ok {
			s.error(c, http.StatusBadRequest, "Invalid status: "+raw)
			return
		}
		filter.Status = status
	}

	field := models.SortByName
	if raw := c.Query("sort"); raw != "" {
		f, ok := models.ParseSortField(raw)
		if !ok {
			s.error(c, http.StatusBadRequest, "Invalid sort field: "+raw)
			return
		}
		field = f
	}
	var desc bool
	switch order := strings.ToLower(c.DefaultQuery("order", "asc")); order {
	case "asc":
	case "desc":
		desc = true
	default:
		s.error(c, http.StatusBadRequest, "Invalid order: "+order)
		return
	}

	all, err := s.service.ListParts(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	list := models.SortParts(models.FilterParts(all, filter), field, desc)
	s.success(c, http.StatusOK, gin.H{
		"parts": partViews(list),
		"total": len(all),
		"shown": len(list),
	})
}

func (s *PartsHTTPHandler) GetPart(c *gin.Context) {
	p, err := s.service.GetPart(c.Request.Context(), partID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, http.StatusOK, NewPartView(p))
}

func (s *PartsHTTPHandler) SearchParts(c *gin.Context) {
	var params models.PartSearchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid search parameters: "+err.Error())
		return
	}

	out, err := s.service.SearchParts(c.Request.Context(), params)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, http.StatusOK, gin.H{
		"performed": out.Performed,
		"params":    out.Params,
		"parts":     partViews(out.Parts),
	})
}

func (s *PartsHTTPHandler) CreatePart(c *gin.Context) {
	var req models.PartCreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	p, err := s.service.CreatePart(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, http.StatusCreated, NewPartView(p))
}

func (s *PartsHTTPHandler) UpdatePart(c *gin.Context) {
	var req models.PartUpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		s.error(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.IsEmpty() {
		s.error(c, http.StatusBadRequest, "No fields to update")
		return
	}

	p, err := s.service.UpdatePart(c.Request.Context(), partID(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, http.StatusOK, NewPartView(p))
}

// DeletePart requires an explicit confirm=true; deletion cannot be undone.
func (s *PartsHTTPHandler) DeletePart(c *gin.Context) {
	if ok, _ := strconv.ParseBool(c.Query("confirm")); !ok {
		s.error(c, http.StatusPreconditionRequired, "Deleting a part cannot be undone; repeat the request with confirm=true")
		return
	}

	id := partID(c)
	if err := s.service.DeletePart(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// WatchParts streams the list as server-sent events, one "parts" event now
// and another after every reload.
func (s *PartsHTTPHandler) WatchParts(c *gin.Context) {
	ctx := c.Request.Context()
	updates := make(chan []models.Part, 1)
	push := func(ps []models.Part) {
		// Latest wins; a slow reader skips intermediate lists.
		for {
			select {
			case updates <- ps:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	}

	stop, err := s.service.WatchParts(ctx, push)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ps := <-updates:
			c.SSEvent("parts", partViews(ps))
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// --- Warehouse map ---

func (s *PartsHTTPHandler) GetMap(c *gin.Context) {
	all, err := s.service.ListParts(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, http.StatusOK, gin.H{
		"aisles": models.GroupByLocation(all),
		"total":  len(all),
	})
}

// RegisterRoutes mounts the part pages on rg.
func (s *PartsHTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	p := rg.Group("/parts")
	{
		p.GET("", s.ListParts)
		p.GET("/search", s.SearchParts)
		p.GET("/watch", s.WatchParts)
		p.GET("/:id", s.GetPart)
		p.POST("", s.CreatePart)
		p.PUT("/:id", s.UpdatePart)
		p.DELETE("/:id", s.DeletePart)
	}
	rg.GET("/map", s.GetMap)
}
