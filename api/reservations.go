package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmorenov/plazacore/internal/clock"
	"github.com/jmorenov/plazacore/internal/domain"
	"github.com/jmorenov/plazacore/internal/service/coordinator"
	"github.com/jmorenov/plazacore/internal/service/reservation"
)

type ReservationHandler struct {
	manager reservation.ManagerUseCase
	coord   coordinator.Coordinator
	clock   clock.Clock
}

type bookRequest struct {
	FacilityID   int64  `json:"facility_id"`
	SpotNumber   int    `json:"spot_number"`
	Plate        string `json:"plate"`
	DriverID     string `json:"driver_id"`
	HoldStart    string `json:"hold_start"`
	HoldEnd      string `json:"hold_end"`
	AmountCents  int64  `json:"amount_cents"`
	GraceMinutes *int   `json:"grace_minutes"`
	Actor        string `json:"actor"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

type convertRequest struct {
	Plate            string  `json:"plate"`
	EntryAt          *string `json:"entry_at"`
	OperatorOverride bool    `json:"operator_override"`
	Actor            string  `json:"actor"`
}

type reservationResponse struct {
	Code         string `json:"code"`
	FacilityID   int64  `json:"facility_id"`
	SpotNumber   int    `json:"spot_number"`
	Plate        string `json:"plate"`
	DriverID     string `json:"driver_id"`
	HoldStart    string `json:"hold_start"`
	HoldEnd      string `json:"hold_end"`
	AmountCents  int64  `json:"amount_cents"`
	Status       string `json:"status"`
	GraceMinutes int    `json:"grace_minutes"`
}

func NewReservationHandler(manager reservation.ManagerUseCase, coord coordinator.Coordinator, clk clock.Clock) *ReservationHandler {
	return &ReservationHandler{manager: manager, coord: coord, clock: clk}
}

func (h *ReservationHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.book)
	router.POST("/expire-due", h.expireDue)
	router.GET("/active", h.lookupActive)
	router.GET("/:code", h.get)
	router.PUT("/:code/confirm", h.confirm)
	router.DELETE("/:code", h.cancel)
	router.POST("/:code/convert", h.convert)
}

func toReservationResponse(r *domain.Reservation) reservationResponse {
	return reservationResponse{
		Code:         r.Code,
		FacilityID:   r.FacilityID,
		SpotNumber:   r.SpotNumber,
		Plate:        r.Plate,
		DriverID:     r.DriverID,
		HoldStart:    r.HoldStart.Format(time.RFC3339),
		HoldEnd:      r.HoldEnd.Format(time.RFC3339),
		AmountCents:  r.AmountCents,
		Status:       string(r.Status),
		GraceMinutes: r.GraceMinutes,
	}
}

func (h *ReservationHandler) book(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	holdStart, err := time.Parse(time.RFC3339, req.HoldStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hold_start"})
		return
	}
	holdEnd, err := time.Parse(time.RFC3339, req.HoldEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hold_end"})
		return
	}

	res, err := h.manager.Book(c.Request.Context(), reservation.BookInput{
		FacilityID:   req.FacilityID,
		SpotNumber:   req.SpotNumber,
		Plate:        req.Plate,
		DriverID:     req.DriverID,
		HoldStart:    holdStart,
		HoldEnd:      holdEnd,
		AmountCents:  req.AmountCents,
		GraceMinutes: req.GraceMinutes,
		Actor:        req.Actor,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReservationResponse(res))
}

func (h *ReservationHandler) get(c *gin.Context) {
	res, err := h.manager.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) lookupActive(c *gin.Context) {
	fid, err := strconv.ParseInt(c.Query("facility_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid facility_id"})
		return
	}
	spot, err := strconv.Atoi(c.Query("spot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid spot"})
		return
	}

	res, err := h.manager.LookupActive(c.Request.Context(), fid, spot)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) confirm(c *gin.Context) {
	res, err := h.manager.Confirm(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) cancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.manager.Cancel(c.Request.Context(), c.Param("code"), req.Reason, req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

func (h *ReservationHandler) convert(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entryAt, ok := parseTimestamp(c, req.EntryAt)
	if !ok {
		return
	}

	occ, err := h.manager.ConvertToOccupancy(c.Request.Context(), reservation.ConvertInput{
		Code:             c.Param("code"),
		Plate:            req.Plate,
		EntryAt:          entryAt,
		OperatorOverride: req.OperatorOverride,
		Actor:            req.Actor,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOccupancyResponse(occ))
}

// expireDue triggers the sweep on demand; the worker runs the same
// operation on a schedule. Both use facility-local time.
func (h *ReservationHandler) expireDue(c *gin.Context) {
	count, err := h.coord.ExpireDueReservations(c.Request.Context(), h.clock.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": count})
}
