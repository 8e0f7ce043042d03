package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jmorenov/plazacore/internal/domain"
	"github.com/jmorenov/plazacore/internal/service/movement"
	"github.com/jmorenov/plazacore/internal/service/occupancy"
)

type OccupancyHandler struct {
	ledger   occupancy.LedgerUseCase
	recorder movement.RecorderUseCase
}

type checkinRequest struct {
	FacilityID int64   `json:"facility_id"`
	SpotNumber *int    `json:"spot_number"`
	Plate      string  `json:"plate"`
	EntryAt    *string `json:"entry_at"`
	TariffRef  *string `json:"tariff_ref"`
	PaymentRef *string `json:"payment_ref"`
	Actor      string  `json:"actor"`
}

type checkoutRequest struct {
	ExitAt *string `json:"exit_at"`
	Actor  string  `json:"actor"`
}

type recordMovementRequest struct {
	FacilityID      int64   `json:"facility_id"`
	Plate           string  `json:"plate"`
	OriginSpot      *int    `json:"origin_spot"`
	DestinationSpot int     `json:"destination_spot"`
	OriginZone      *string `json:"origin_zone"`
	DestinationZone *string `json:"destination_zone"`
	OperatorID      string  `json:"operator_id"`
	Reason          string  `json:"reason"`
	OccurredAt      *string `json:"occurred_at"`
}

type relocateRequest struct {
	SpotNumber int    `json:"spot_number"`
	OperatorID string `json:"operator_id"`
	Reason     string `json:"reason"`
}

type occupancyResponse struct {
	ID         string  `json:"id"`
	FacilityID int64   `json:"facility_id"`
	SpotNumber *int    `json:"spot_number,omitempty"`
	Plate      string  `json:"plate"`
	EntryAt    string  `json:"entry_at"`
	ExitAt     *string `json:"exit_at,omitempty"`
}

type movementResponse struct {
	ID              int64   `json:"id"`
	Plate           string  `json:"plate"`
	OriginSpot      *int    `json:"origin_spot,omitempty"`
	DestinationSpot int     `json:"destination_spot"`
	OriginZone      *string `json:"origin_zone,omitempty"`
	DestinationZone *string `json:"destination_zone,omitempty"`
	OperatorID      string  `json:"operator_id"`
	Reason          string  `json:"reason"`
	OccurredAt      string  `json:"occurred_at"`
}

func NewOccupancyHandler(ledger occupancy.LedgerUseCase, recorder movement.RecorderUseCase) *OccupancyHandler {
	return &OccupancyHandler{ledger: ledger, recorder: recorder}
}

func (h *OccupancyHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.checkin)
	router.GET("/active", h.active)
	router.GET("/:id", h.get)
	router.PUT("/:id/exit", h.checkout)
	router.PUT("/:id/relocate", h.relocate)
	router.GET("/:id/movements", h.movements)
	router.POST("/:id/movements", h.recordMovement)
}

func toOccupancyResponse(o *domain.Occupancy) occupancyResponse {
	resp := occupancyResponse{
		ID:         o.ID.String(),
		FacilityID: o.FacilityID,
		SpotNumber: o.SpotNumber,
		Plate:      o.Plate,
		EntryAt:    o.EntryAt.Format(time.RFC3339),
	}
	if o.ExitAt != nil {
		exit := o.ExitAt.Format(time.RFC3339)
		resp.ExitAt = &exit
	}
	return resp
}

func parseTimestamp(c *gin.Context, value *string) (*time.Time, bool) {
	if value == nil {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timestamp: " + *value})
		return nil, false
	}
	return &t, true
}

func occupancyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid occupancy id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *OccupancyHandler) checkin(c *gin.Context) {
	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entryAt, ok := parseTimestamp(c, req.EntryAt)
	if !ok {
		return
	}

	occ, err := h.ledger.Checkin(c.Request.Context(), occupancy.CheckinInput{
		FacilityID: req.FacilityID,
		SpotNumber: req.SpotNumber,
		Plate:      req.Plate,
		EntryAt:    entryAt,
		TariffRef:  req.TariffRef,
		PaymentRef: req.PaymentRef,
		Actor:      req.Actor,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOccupancyResponse(occ))
}

func (h *OccupancyHandler) get(c *gin.Context) {
	id, ok := occupancyID(c)
	if !ok {
		return
	}

	occ, err := h.ledger.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOccupancyResponse(occ))
}

// active resolves the active occupancy for a plate or a spot.
func (h *OccupancyHandler) active(c *gin.Context) {
	fid, err := strconv.ParseInt(c.Query("facility_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid facility_id"})
		return
	}

	var occ *domain.Occupancy
	switch {
	case c.Query("plate") != "":
		occ, err = h.ledger.ActiveByPlate(c.Request.Context(), fid, c.Query("plate"))
	case c.Query("spot") != "":
		spot, convErr := strconv.Atoi(c.Query("spot"))
		if convErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid spot"})
			return
		}
		occ, err = h.ledger.ActiveBySpot(c.Request.Context(), fid, spot)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "plate or spot query parameter required"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOccupancyResponse(occ))
}

func (h *OccupancyHandler) checkout(c *gin.Context) {
	id, ok := occupancyID(c)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	exitAt, ok := parseTimestamp(c, req.ExitAt)
	if !ok {
		return
	}

	occ, err := h.ledger.Checkout(c.Request.Context(), id, exitAt, req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOccupancyResponse(occ))
}

func (h *OccupancyHandler) relocate(c *gin.Context) {
	id, ok := occupancyID(c)
	if !ok {
		return
	}

	var req relocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mv, err := h.ledger.Relocate(c.Request.Context(), id, req.SpotNumber, req.OperatorID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMovementResponse(*mv))
}

func toMovementResponse(m domain.Movement) movementResponse {
	return movementResponse{
		ID:              m.ID,
		Plate:           m.Plate,
		OriginSpot:      m.OriginSpot,
		DestinationSpot: m.DestinationSpot,
		OriginZone:      m.OriginZone,
		DestinationZone: m.DestinationZone,
		OperatorID:      m.OperatorID,
		Reason:          m.Reason,
		OccurredAt:      m.OccurredAt.Format(time.RFC3339),
	}
}

// recordMovement appends a movement entry directly, for corrections
// and bulk imports. Regular relocations go through the relocate
// endpoint, which also flips spot statuses.
func (h *OccupancyHandler) recordMovement(c *gin.Context) {
	id, ok := occupancyID(c)
	if !ok {
		return
	}

	var req recordMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	occurredAt, ok := parseTimestamp(c, req.OccurredAt)
	if !ok {
		return
	}

	mv := &domain.Movement{
		FacilityID:      req.FacilityID,
		OccupancyID:     id,
		Plate:           req.Plate,
		OriginSpot:      req.OriginSpot,
		DestinationSpot: req.DestinationSpot,
		OriginZone:      req.OriginZone,
		DestinationZone: req.DestinationZone,
		OperatorID:      req.OperatorID,
		Reason:          req.Reason,
	}
	if occurredAt != nil {
		mv.OccurredAt = *occurredAt
	}

	recorded, err := h.recorder.Record(c.Request.Context(), mv)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMovementResponse(*recorded))
}

func (h *OccupancyHandler) movements(c *gin.Context) {
	id, ok := occupancyID(c)
	if !ok {
		return
	}

	movements, err := h.recorder.HistoryForStay(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	c.JSON(http.StatusOK, out)
}
