package listingevents

import (
	"strings"

	lesvc "csx-backend/internal/application/listingevents"
	"csx-backend/internal/middleware"
	"csx-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *lesvc.Service
}

// GetMyListingEvents GET /api/v1/credits/listing-events?type=
func (h *Handlers) GetMyListingEvents(c *fiber.Ctx) error {
	caller := middleware.GetCaller(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	events, err := h.Service.ListForSeller(c.Context(), caller.AccountID, strings.ToUpper(c.Query("type")))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing events fetched successfully", events, fiber.Map{"count": len(events)})
}
