package companies

import (
	"csx-backend/internal/application/scoring"
	"csx-backend/internal/middleware"
	"csx-backend/internal/pkg/response"
	"csx-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *scoring.Service
}

// SubmitData POST /api/v1/companies/:id/data
// A certificate failure still answers 200; data.certificateError carries the reason.
func (h *Handlers) SubmitData(c *fiber.Ctx) error {
	caller := middleware.GetCaller(c)
	if caller == nil {
		return response.Unauthorized(c, "Unauthorized")
	}
	companyID, err := validation.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var body scoring.Data
	if err := validation.BindJSON(c, &body); err != nil {
		return response.FromError(c, err)
	}
	res, err := h.Service.SubmitData(c.Context(), caller.AccountID, companyID, body)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Data submitted and scored successfully", res, nil)
}

// GetScore GET /api/v1/companies/:id/score
func (h *Handlers) GetScore(c *fiber.Ctx) error {
	companyID, err := validation.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	score, err := h.Service.LatestScore(c.Context(), companyID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Score fetched successfully", score, nil)
}

// GetScoreHistory GET /api/v1/companies/:id/score-history?limit=
func (h *Handlers) GetScoreHistory(c *fiber.Ctx) error {
	companyID, err := validation.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	history, err := h.Service.ScoreHistory(c.Context(), companyID, c.QueryInt("limit", 0))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Score history fetched successfully", history, fiber.Map{"count": len(history)})
}

// ListCompanies GET /api/v1/companies
func (h *Handlers) ListCompanies(c *fiber.Ctx) error {
	dir, err := h.Service.Directory(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Companies fetched successfully", dir, fiber.Map{"count": len(dir)})
}
