package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/pkg/errors"

	"github.com/usememos/supportbot/internal/profile"
	"github.com/usememos/supportbot/plugin/advisor"
	"github.com/usememos/supportbot/server/supportbot"
	"github.com/usememos/supportbot/store"
)

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Service *supportbot.Service
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, service *supportbot.Service) *APIV1Service {
	return &APIV1Service{
		Profile: profile,
		Store:   store,
		Service: service,
	}
}

// RegisterRoutes mounts every /api/v1 route on e.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c *echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	s.registerSupportRoutes(e)
	s.registerCustomerRoutes(e)
	s.registerTicketRoutes(e)
}

// toHTTPError maps domain and upstream failures to status codes. Upstream
// details stay in the log.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, supportbot.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, supportbot.ErrCustomerNotFound), errors.Is(err, supportbot.ErrTicketNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, advisor.ErrTimeout):
		return echo.NewHTTPError(http.StatusGatewayTimeout, timeoutMessage)
	case errors.Is(err, advisor.ErrUpstream):
		return echo.NewHTTPError(http.StatusBadGateway, unavailableMessage)
	default:
		slog.Error("request failed", "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

const (
	timeoutMessage     = "The support assistant took too long to answer. Please try again."
	unavailableMessage = "The support assistant is temporarily unavailable. Please try again later."
)

// failureMessage is the text shown to a client whose stream broke off.
func failureMessage(err error) string {
	if errors.Is(err, advisor.ErrTimeout) {
		return timeoutMessage
	}
	return unavailableMessage
}
