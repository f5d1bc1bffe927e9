package trading

import (
	"csx-backend/internal/application/ledger"
	tradesvc "csx-backend/internal/application/trading"
	"csx-backend/internal/middleware"
	"csx-backend/internal/pkg/response"
	"csx-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Trading *tradesvc.Service
	Ledger  *ledger.Service
}

type purchaseBody struct {
	ListingID uuid.UUID        `json:"listingId" validate:"required"`
	Amount    *decimal.Decimal `json:"amount" validate:"required"`
}

type transferBody struct {
	ToUserID    uuid.UUID        `json:"toUserId" validate:"required"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Description string           `json:"description" validate:"max=255"`
}

// Purchase POST /api/v1/credits/purchase
func (h *Handlers) Purchase(c *fiber.Ctx) error {
	caller := middleware.GetCaller(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body purchaseBody
	if err := validation.BindJSON(c, &body); err != nil {
		return response.FromError(c, err)
	}
	res, err := h.Trading.Purchase(c.Context(), caller.AccountID, body.ListingID, *body.Amount)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Credits purchased successfully", res, nil)
}

// Transfer POST /api/v1/credits/transfer
func (h *Handlers) Transfer(c *fiber.Ctx) error {
	caller := middleware.GetCaller(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body transferBody
	if err := validation.BindJSON(c, &body); err != nil {
		return response.FromError(c, err)
	}
	tx, err := h.Ledger.Transfer(c.Context(), caller.AccountID, body.ToUserID, *body.Amount, body.Description)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Credits transferred successfully", fiber.Map{"transactionId": tx.TxID, "transaction": tx}, nil)
}

// Grant POST /api/v1/credits/grant (government incentive)
func (h *Handlers) Grant(c *fiber.Ctx) error {
	var body transferBody
	if err := validation.BindJSON(c, &body); err != nil {
		return response.FromError(c, err)
	}
	tx, err := h.Ledger.Grant(c.Context(), body.ToUserID, *body.Amount, body.Description)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Credits granted successfully", fiber.Map{"transactionId": tx.TxID, "transaction": tx}, nil)
}
