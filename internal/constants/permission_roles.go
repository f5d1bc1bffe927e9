package constants

import (
	roles "csx-backend/internal/pkg/constants"
)

// PermissionRoles maps each permission to roles allowed to perform it.
// Only individuals sell and only companies buy.
var PermissionRoles = map[string][]string{
	ViewData:               {roles.Company, roles.Individual, roles.Government},
	TransferCredits:        {roles.Company, roles.Individual},
	CreateListing:          {roles.Individual},
	CancelListing:          {roles.Individual},
	PurchaseCredits:        {roles.Company},
	GrantCredits:           {roles.Government},
	SubmitData:             {roles.Company},
	ViewDashboard:          {roles.Government},
	ViewCertAuditLog:       {roles.Government},
	CreateTender:           {roles.Government},
	CloseTender:            {roles.Government},
	ApplyTender:            {roles.Company},
	ViewTenderApplications: {roles.Government},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	allowed, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
