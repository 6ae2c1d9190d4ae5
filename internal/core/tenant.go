package core

type Plan string

const (
	PlanStarter    Plan = "starter"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantInactive  TenantStatus = "inactive"
	TenantSuspended TenantStatus = "suspended"
)

// Limits caps what a tenant may do, derived from its plan.
type Limits struct {
	Sessions       int `json:"sessions"`
	MessagesPerDay int `json:"messages_per_day"`
}

// Profile is the tenant metadata supplied when a session is created.
// The session core treats it as read-only.
type Profile struct {
	Username    string       `json:"username"`
	Email       string       `json:"email"`
	PhoneNumber string       `json:"phone_number"`
	Plan        Plan         `json:"plan"`
	Role        Role         `json:"role"`
	Status      TenantStatus `json:"status"`
	Limits      Limits       `json:"limits"`
}

func (p Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// DefaultLimits returns the plan defaults applied when a profile
// arrives without explicit limits.
func DefaultLimits(plan Plan) Limits {
	switch plan {
	case PlanEnterprise:
		return Limits{Sessions: 10, MessagesPerDay: 50000}
	case PlanPro:
		return Limits{Sessions: 3, MessagesPerDay: 10000}
	default:
		return Limits{Sessions: 1, MessagesPerDay: 1000}
	}
}
