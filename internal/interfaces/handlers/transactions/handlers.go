package transactions

import (
	"csx-backend/internal/application/ledger"
	"csx-backend/internal/middleware"
	"csx-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *ledger.Service
}

// GetBalance GET /api/v1/credits/balance
func (h *Handlers) GetBalance(c *fiber.Ctx) error {
	caller := middleware.GetCaller(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	balance, err := h.Service.GetBalance(c.Context(), caller.AccountID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Balance fetched successfully", fiber.Map{"balance": balance}, nil)
}

// GetTransactions GET /api/v1/credits/transactions?limit=
func (h *Handlers) GetTransactions(c *fiber.Ctx) error {
	caller := middleware.GetCaller(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	limit := c.QueryInt("limit", 50)
	data, err := h.Service.History(c.Context(), caller.AccountID, limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Transactions fetched successfully", data, fiber.Map{"count": len(data)})
}

// GetMarketplace GET /api/v1/credits/marketplace
func (h *Handlers) GetMarketplace(c *fiber.Ctx) error {
	sellers, err := h.Service.Marketplace(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Marketplace fetched successfully", sellers, fiber.Map{"count": len(sellers)})
}
