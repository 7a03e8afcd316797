package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdministrator UserRole = "administrator"
	RoleZone          UserRole = "zone"
	RoleProvincial    UserRole = "provincial"
	RoleDepartment    UserRole = "department"
	RoleCluster       UserRole = "cluster"
	RoleDirector      UserRole = "director"
	RoleTeacher       UserRole = "teacher"
)

// ImpactDeleteRoles may remove impact assessments individually or in bulk.
var ImpactDeleteRoles = []UserRole{RoleAdministrator, RoleZone, RoleProvincial}

// ImpactVerifyRoles may verify or reject impact assessments.
var ImpactVerifyRoles = []UserRole{RoleDepartment, RoleProvincial, RoleZone, RoleAdministrator}

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	UserID string
	Role   UserRole
}

// HasRole reports whether the actor holds one of the allowed roles.
func (a *Actor) HasRole(allowed ...UserRole) bool {
	if a == nil {
		return false
	}
	for _, role := range allowed {
		if a.Role == role {
			return true
		}
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination derives page count from the total and page size.
func NewPagination(page, limit, total int) *Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return &Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}
