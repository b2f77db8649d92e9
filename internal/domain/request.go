package domain

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================
// Service requests (table: service_requests)
// ============================================================

// ServiceType is the closed catalog of orderable services.
type ServiceType string

const (
	ServiceCoffeeRefill         ServiceType = "coffee-refill"
	ServiceNitrogenRefill       ServiceType = "nitrogen-refill"
	ServiceKegeratorMaintenance ServiceType = "kegerator-maintenance"
)

// ServiceCatalog lists every service type in display order.
var ServiceCatalog = []ServiceType{
	ServiceCoffeeRefill,
	ServiceNitrogenRefill,
	ServiceKegeratorMaintenance,
}

// ParseServiceType rejects anything outside the catalog.
func ParseServiceType(s string) (ServiceType, error) {
	t := ServiceType(strings.TrimSpace(s))
	switch t {
	case ServiceCoffeeRefill, ServiceNitrogenRefill, ServiceKegeratorMaintenance:
		return t, nil
	}
	return "", &ErrValidation{Field: "service_type", Message: fmt.Sprintf("unknown service type %q", s)}
}

// DisplayName is the human label stored in service_name.
func (t ServiceType) DisplayName() string {
	switch t {
	case ServiceCoffeeRefill:
		return "Coffee Refill"
	case ServiceNitrogenRefill:
		return "Nitrogen Refill"
	case ServiceKegeratorMaintenance:
		return "Kegerator Maintenance"
	}
	return string(t)
}

// ServiceOption is one catalog entry as served by GET /v1/services.
type ServiceOption struct {
	Type ServiceType `json:"service_type"`
	Name string      `json:"service_name"`
}

// Status is the lifecycle state of a request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// ParseStatus rejects anything outside the three lifecycle states.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	switch st {
	case StatusPending, StatusInProgress, StatusCompleted:
		return st, nil
	}
	return "", &ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", s)}
}

// PlaceholderRequestID is used when the store does not echo the new row.
func PlaceholderRequestID(at time.Time) string {
	return fmt.Sprintf("temp-%d", at.UnixMilli())
}

// ServiceRequest is an immutable snapshot of the ordering business at
// submission time plus a mutable status.
type ServiceRequest struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	ServiceType     ServiceType `json:"service_type"`
	ServiceName     string      `json:"service_name"`
	BusinessName    string      `json:"business_name"`
	BusinessAddress string      `json:"business_address"`
	Email           string      `json:"email"`
	Status          Status      `json:"status"`
	AdminNotes      string      `json:"admin_notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NewServiceRequest snapshots profile and email into a pending request.
func NewServiceRequest(t ServiceType, userID, email string, p *Profile) ServiceRequest {
	r := ServiceRequest{
		UserID:      userID,
		ServiceType: t,
		ServiceName: t.DisplayName(),
		Email:       email,
		Status:      StatusPending,
	}
	if p != nil {
		r.BusinessName = p.BusinessName
		r.BusinessAddress = p.BusinessAddress
	}
	return r
}

// RequestColumns are the columns of the service_requests table.
var RequestColumns = []string{
	"id", "user_id", "business_name", "business_address", "service_type",
	"service_name", "status", "email", "admin_notes", "created_at", "updated_at",
}

// Columns returns the insertable columns. Contact details stay on the
// profile; the table only snapshots business name and address.
func (r ServiceRequest) Columns() map[string]any {
	return map[string]any{
		"user_id":          r.UserID,
		"service_type":     string(r.ServiceType),
		"service_name":     r.ServiceName,
		"business_name":    r.BusinessName,
		"business_address": r.BusinessAddress,
		"email":            r.Email,
		"status":           string(r.Status),
	}
}

// RequestQuery narrows a store listing. Zero values mean no constraint.
// Results are always newest first.
type RequestQuery struct {
	UserID       string
	Status       Status
	BusinessName string
	ServiceType  ServiceType
	Limit        int
}

// RequestFilter is the admin view's three-way filter. An empty value
// matches everything.
type RequestFilter struct {
	BusinessName string      `json:"business"`
	Status       Status      `json:"status"`
	ServiceType  ServiceType `json:"service_type"`
}

// Matches is a pure conjunction of the three predicates.
func (f RequestFilter) Matches(r ServiceRequest) bool {
	if f.BusinessName != "" && r.BusinessName != f.BusinessName {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.ServiceType != "" && r.ServiceType != f.ServiceType {
		return false
	}
	return true
}

// RequestStats are the admin dashboard counters.
type RequestStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
}

// StatusUpdate is the body for PATCH /v1/admin/requests/{id}.
type StatusUpdate struct {
	Status Status `json:"status"`
	Notes  string `json:"notes"`
}
