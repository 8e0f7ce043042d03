package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmorenov/plazacore/api"
	"github.com/jmorenov/plazacore/config"
	"github.com/jmorenov/plazacore/internal/clock"
	"github.com/jmorenov/plazacore/internal/service/coordinator"
	"github.com/jmorenov/plazacore/internal/service/movement"
	"github.com/jmorenov/plazacore/internal/service/occupancy"
	"github.com/jmorenov/plazacore/internal/service/registry"
	"github.com/jmorenov/plazacore/internal/service/reservation"
)

type Services struct {
	Registry    registry.RegistryUseCase
	Ledger      occupancy.LedgerUseCase
	Manager     reservation.ManagerUseCase
	Recorder    movement.RecorderUseCase
	Coordinator coordinator.Coordinator
	Clock       clock.Clock
}

// Run starts the HTTP server and blocks until the context is canceled
// or the server fails.
func Run(ctx context.Context, cfg *config.Config, svc Services) error {
	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: NewRouter(svc),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

// NewRouter wires the handler groups. Separated from Run so handler
// tests can serve requests without a listener.
func NewRouter(svc Services) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	spotHandler := api.NewSpotHandler(svc.Registry, svc.Coordinator)
	spotHandler.Register(router.Group("/facilities/:facilityID/spots"))

	occupancyHandler := api.NewOccupancyHandler(svc.Ledger, svc.Recorder)
	occupancyHandler.Register(router.Group("/occupancies"))

	reservationHandler := api.NewReservationHandler(svc.Manager, svc.Coordinator, svc.Clock)
	reservationHandler.Register(router.Group("/reservations"))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}
