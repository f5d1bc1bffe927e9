package listings

import (
	listsvc "csx-backend/internal/application/listings"
	"csx-backend/internal/middleware"
	"csx-backend/internal/pkg/response"
	"csx-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *listsvc.Service
}

type createListingBody struct {
	Amount       *decimal.Decimal `json:"amount" validate:"required"`
	PricePerUnit *decimal.Decimal `json:"pricePerUnit"`
}

// CreateListing POST /api/v1/credits/listings
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	caller := middleware.GetCaller(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body createListingBody
	if err := validation.BindJSON(c, &body); err != nil {
		return response.FromError(c, err)
	}
	listing, err := h.Service.CreateListing(c.Context(), caller.AccountID, *body.Amount, body.PricePerUnit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Listing created successfully", listing, nil)
}

// GetActiveListings GET /api/v1/credits/listings
func (h *Handlers) GetActiveListings(c *fiber.Ctx) error {
	data, err := h.Service.ListActive(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", data, fiber.Map{"count": len(data)})
}

// GetMyListings GET /api/v1/credits/my-listings
func (h *Handlers) GetMyListings(c *fiber.Ctx) error {
	caller := middleware.GetCaller(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	data, err := h.Service.ListBySeller(c.Context(), caller.AccountID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", data, fiber.Map{"count": len(data)})
}

// GetListing GET /api/v1/credits/listings/:id
func (h *Handlers) GetListing(c *fiber.Ctx) error {
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	res, err := h.Service.GetListing(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing fetched successfully", res, nil)
}

// CancelListing DELETE /api/v1/credits/listings/:id
func (h *Handlers) CancelListing(c *fiber.Ctx) error {
	caller := middleware.GetCaller(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	listing, err := h.Service.Cancel(c.Context(), id, caller.AccountID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing cancelled successfully", listing, nil)
}
