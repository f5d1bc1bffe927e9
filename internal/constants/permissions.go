package constants

const (
	ViewData         = "view_data"
	TransferCredits  = "transfer_credits"
	CreateListing    = "create_listing"
	CancelListing    = "cancel_listing"
	PurchaseCredits  = "purchase_credits"
	GrantCredits     = "grant_credits"
	SubmitData       = "submit_data"
	ViewDashboard    = "view_dashboard"
	ViewCertAuditLog = "view_certificate_audit_log"

	CreateTender           = "create_tender"
	CloseTender            = "close_tender"
	ApplyTender            = "apply_tender"
	ViewTenderApplications = "view_tender_applications"
)
