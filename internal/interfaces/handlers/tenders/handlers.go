package tenders

import (
	"encoding/json"
	"time"

	tendersvc "csx-backend/internal/application/tenders"
	"csx-backend/internal/middleware"
	"csx-backend/internal/pkg/response"
	"csx-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *tendersvc.Service
}

type createTenderBody struct {
	Title       string           `json:"title" validate:"required"`
	Description string           `json:"description"`
	MinScore    *decimal.Decimal `json:"minScore" validate:"required"`
	Budget      *decimal.Decimal `json:"budget"`
	Deadline    *time.Time       `json:"deadline" validate:"required"`
}

type applyBody struct {
	ApplicationData json.RawMessage `json:"applicationData"`
}

// ListTenders GET /api/v1/tenders
func (h *Handlers) ListTenders(c *fiber.Ctx) error {
	data, err := h.Service.ListOpen(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Tenders fetched successfully", data, fiber.Map{"count": len(data)})
}

// CreateTender POST /api/v1/tenders
func (h *Handlers) CreateTender(c *fiber.Ctx) error {
	caller := middleware.GetCaller(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body createTenderBody
	if err := validation.BindJSON(c, &body); err != nil {
		return response.FromError(c, err)
	}
	tender, err := h.Service.Create(c.Context(), caller.AccountID, tendersvc.CreateInput{
		Title:       body.Title,
		Description: body.Description,
		MinScore:    *body.MinScore,
		Budget:      body.Budget,
		Deadline:    *body.Deadline,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Tender created successfully", tender, nil)
}

// CloseTender POST /api/v1/tenders/:id/close
func (h *Handlers) CloseTender(c *fiber.Ctx) error {
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	tender, err := h.Service.Close(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Tender closed successfully", tender, nil)
}

// Apply POST /api/v1/tenders/:id/apply
func (h *Handlers) Apply(c *fiber.Ctx) error {
	caller := middleware.GetCaller(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body applyBody
	if err := validation.BindJSON(c, &body); err != nil {
		return response.FromError(c, err)
	}
	app, err := h.Service.Apply(c.Context(), caller.AccountID, id, body.ApplicationData)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Application submitted successfully", app, nil)
}

// MyApplications GET /api/v1/tenders/my-applications
func (h *Handlers) MyApplications(c *fiber.Ctx) error {
	caller := middleware.GetCaller(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	data, err := h.Service.ApplicationsOf(c.Context(), caller.AccountID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Applications fetched successfully", data, fiber.Map{"count": len(data)})
}

// TenderApplications GET /api/v1/tenders/:id/applications
func (h *Handlers) TenderApplications(c *fiber.Ctx) error {
	id, err := validation.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	data, err := h.Service.Applications(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Applications fetched successfully", data, fiber.Map{"count": len(data)})
}
