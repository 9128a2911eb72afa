package domain

// ============================================================
// Auth / access request types
// ============================================================

// MeResponse is the body of GET /v1/me.
type MeResponse struct {
	Profile   *Profile `json:"profile"`
	CanAccess bool     `json:"can_access"`
	Pending   bool     `json:"pending"`
}

// AccessRequestResponse is the body of POST /v1/access-request.
type AccessRequestResponse struct {
	Status         ProfileStatus `json:"status"`
	NotifiedAdmins int           `json:"notified_admins"`
}
