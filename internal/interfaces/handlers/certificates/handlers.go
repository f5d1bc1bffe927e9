package certificates

import (
	"errors"
	"path/filepath"

	certsvc "csx-backend/internal/application/certificates"
	"csx-backend/internal/pkg/response"
	"csx-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Verifier *certsvc.Verifier
	Service  *certsvc.Service
}

// Verify GET /api/v1/certificates/verify/:certificateId (public)
// Invalid certificates are still a 200; the body's valid flag carries the outcome.
func (h *Handlers) Verify(c *fiber.Ctx) error {
	res, err := h.Verifier.Verify(c.Context(), c.Params("certificateId"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Verification complete", res, nil)
}

// ListByCompany GET /api/v1/certificates/company/:companyId
func (h *Handlers) ListByCompany(c *fiber.Ctx) error {
	companyID, err := validation.ParamUUID(c, "companyId")
	if err != nil {
		return response.FromError(c, err)
	}
	certs, err := h.Service.ListByCompany(c.Context(), companyID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Certificates fetched successfully", certs, fiber.Map{"count": len(certs)})
}

// Download GET /api/v1/certificates/download/:id
func (h *Handlers) Download(c *fiber.Ctx) error {
	art, err := h.Service.Download(c.Context(), c.Params("id"))
	if errors.Is(err, certsvc.ErrUnavailable) {
		return response.Error(c, "Certificate is not valid or has expired", fiber.StatusGone, nil)
	}
	if err != nil {
		return response.FromError(c, err)
	}
	c.Attachment(art.Certificate.CertificateID + filepath.Ext(art.Certificate.ArtifactPath))
	return c.Send(art.Data)
}

// AuditLog GET /api/v1/certificates/audit/log (government)
func (h *Handlers) AuditLog(c *fiber.Ctx) error {
	certs, err := h.Service.AuditLog(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Audit log fetched successfully", certs, fiber.Map{"count": len(certs)})
}
