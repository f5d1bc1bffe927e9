package gov

import (
	"csx-backend/internal/application/regulator"
	"csx-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *regulator.Service
}

// Dashboard GET /api/v1/gov/dashboard
func (h *Handlers) Dashboard(c *fiber.Ctx) error {
	d, err := h.Service.Dashboard(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Dashboard fetched successfully", d, nil)
}

// IndustryAnalysis GET /api/v1/gov/industry-analysis
func (h *Handlers) IndustryAnalysis(c *fiber.Ctx) error {
	out, err := h.Service.IndustryAnalysis(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Industry analysis fetched successfully", out, fiber.Map{"count": len(out)})
}

// Companies GET /api/v1/gov/companies?search=&sortOrder=&page=&limit=
func (h *Handlers) Companies(c *fiber.Ctx) error {
	page, err := h.Service.Companies(c.Context(), regulator.CompanyQuery{
		Search:    c.Query("search"),
		SortOrder: c.Query("sortOrder", "desc"),
		Page:      c.QueryInt("page", 1),
		Limit:     c.QueryInt("limit", 50),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Companies fetched successfully", page, nil)
}

// Individuals GET /api/v1/gov/individuals?search=&sortOrder=
func (h *Handlers) Individuals(c *fiber.Ctx) error {
	rows, err := h.Service.Individuals(c.Context(), c.Query("search"), c.Query("sortOrder", "desc"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Individuals fetched successfully", fiber.Map{"individuals": rows, "total": len(rows)}, nil)
}

// ScoreDistribution GET /api/v1/gov/score-distribution
func (h *Handlers) ScoreDistribution(c *fiber.Ctx) error {
	out, err := h.Service.ScoreDistribution(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Score distribution fetched successfully", out, nil)
}
