package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmorenov/plazacore/internal/domain"
	"github.com/jmorenov/plazacore/internal/service/coordinator"
	"github.com/jmorenov/plazacore/internal/service/registry"
)

type SpotHandler struct {
	registry registry.RegistryUseCase
	coord    coordinator.Coordinator
}

type provisionRequest struct {
	Zone       *string `json:"zone"`
	Category   string  `json:"category"`
	FromNumber int     `json:"from_number"`
	ToNumber   int     `json:"to_number"`
}

type maintenanceRequest struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason"`
	Actor   string `json:"actor"`
}

type spotResponse struct {
	FacilityID int64   `json:"facility_id"`
	Number     int     `json:"number"`
	Category   string  `json:"category"`
	Zone       *string `json:"zone,omitempty"`
	Status     string  `json:"status"`
}

type statusChangeResponse struct {
	Prior      string `json:"prior_status"`
	Next       string `json:"next_status"`
	Reason     string `json:"reason"`
	Actor      string `json:"actor"`
	OccurredAt string `json:"occurred_at"`
}

func NewSpotHandler(reg registry.RegistryUseCase, coord coordinator.Coordinator) *SpotHandler {
	return &SpotHandler{registry: reg, coord: coord}
}

func (h *SpotHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.board)
	router.POST("/", h.provision)
	router.DELETE("/", h.reset)
	router.GET("/:number", h.get)
	router.GET("/:number/log", h.statusLog)
	router.PUT("/:number/maintenance", h.maintenance)
}

func toSpotResponse(s domain.Spot) spotResponse {
	return spotResponse{
		FacilityID: s.FacilityID,
		Number:     s.Number,
		Category:   string(s.Category),
		Zone:       s.Zone,
		Status:     string(s.Status),
	}
}

func facilityID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("facilityID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid facility id"})
		return 0, false
	}
	return id, true
}

func spotNumber(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid spot number"})
		return 0, false
	}
	return n, true
}

func (h *SpotHandler) board(c *gin.Context) {
	fid, ok := facilityID(c)
	if !ok {
		return
	}

	spots, err := h.registry.Board(c.Request.Context(), fid)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]spotResponse, 0, len(spots))
	for _, s := range spots {
		out = append(out, toSpotResponse(s))
	}
	c.JSON(http.StatusOK, out)
}

func (h *SpotHandler) provision(c *gin.Context) {
	fid, ok := facilityID(c)
	if !ok {
		return
	}

	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.registry.Provision(c.Request.Context(), registry.ProvisionInput{
		FacilityID: fid,
		Zone:       req.Zone,
		Category:   domain.VehicleCategory(req.Category),
		FromNumber: req.FromNumber,
		ToNumber:   req.ToNumber,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": created})
}

func (h *SpotHandler) reset(c *gin.Context) {
	fid, ok := facilityID(c)
	if !ok {
		return
	}

	var zone *string
	if z := c.Query("zone"); z != "" {
		zone = &z
	}

	deleted, err := h.registry.Reset(c.Request.Context(), fid, zone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *SpotHandler) get(c *gin.Context) {
	fid, ok := facilityID(c)
	if !ok {
		return
	}
	number, ok := spotNumber(c)
	if !ok {
		return
	}

	spot, err := h.registry.Get(c.Request.Context(), fid, number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSpotResponse(*spot))
}

func (h *SpotHandler) statusLog(c *gin.Context) {
	fid, ok := facilityID(c)
	if !ok {
		return
	}
	number, ok := spotNumber(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	changes, err := h.registry.StatusLog(c.Request.Context(), fid, number, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]statusChangeResponse, 0, len(changes))
	for _, ch := range changes {
		out = append(out, statusChangeResponse{
			Prior:      string(ch.Prior),
			Next:       string(ch.Next),
			Reason:     ch.Reason,
			Actor:      ch.Actor,
			OccurredAt: ch.OccurredAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *SpotHandler) maintenance(c *gin.Context) {
	fid, ok := facilityID(c)
	if !ok {
		return
	}
	number, ok := spotNumber(c)
	if !ok {
		return
	}

	var req maintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.coord.SetMaintenance(c.Request.Context(), fid, number, req.Enabled, req.Reason, req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}
