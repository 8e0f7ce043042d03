package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jmorenov/plazacore/internal/domain"
)

// respondError maps the engine's typed errors onto HTTP statuses. Every
// failure keeps its structured message so the caller can act on it.
func respondError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSpotUnavailable),
		errors.Is(err, domain.ErrSpotOccupied),
		errors.Is(err, domain.ErrSpotHasActiveReservation),
		errors.Is(err, domain.ErrDuplicateActiveOccupancy),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrVehicleMismatch),
		errors.Is(err, domain.ErrAlreadyClosed):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
