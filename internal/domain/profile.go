package domain

import (
	"strconv"
	"strings"
	"time"
)

// ============================================================
// Business profile (table: profiles)
// ============================================================

// Profile is the per-user business record. At most one exists per UserID.
type Profile struct {
	ID              string    `json:"id,omitempty"`
	UserID          string    `json:"user_id"`
	BusinessName    string    `json:"business_name"`
	BusinessAddress string    `json:"business_address"`
	OfficeSize      int       `json:"office_size"`
	PointOfContact  string    `json:"point_of_contact"`
	PhoneNumber     string    `json:"phone_number"`
	Email           string    `json:"email,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ProfileField is one of the user-editable profile columns.
type ProfileField string

const (
	FieldBusinessName    ProfileField = "business_name"
	FieldBusinessAddress ProfileField = "business_address"
	FieldPointOfContact  ProfileField = "point_of_contact"
	FieldPhoneNumber     ProfileField = "phone_number"
	FieldOfficeSize      ProfileField = "office_size"
)

// EditableFields lists the fields in display order.
var EditableFields = []ProfileField{
	FieldBusinessName,
	FieldBusinessAddress,
	FieldPointOfContact,
	FieldPhoneNumber,
	FieldOfficeSize,
}

// ParseProfileField accepts the column name or its hyphenated form
// ("point-of-contact").
func ParseProfileField(s string) (ProfileField, error) {
	f := ProfileField(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	switch f {
	case FieldBusinessName, FieldBusinessAddress, FieldPointOfContact, FieldPhoneNumber, FieldOfficeSize:
		return f, nil
	}
	return "", &ErrValidation{Field: "field", Message: "unknown profile field: " + s}
}

// Column returns the storage column for the field.
func (f ProfileField) Column() string {
	switch f {
	case FieldBusinessName:
		return "business_name"
	case FieldBusinessAddress:
		return "business_address"
	case FieldPointOfContact:
		return "point_of_contact"
	case FieldPhoneNumber:
		return "phone_number"
	case FieldOfficeSize:
		return "office_size"
	}
	return ""
}

// Label is the human title shown in the edit dialog.
func (f ProfileField) Label() string {
	switch f {
	case FieldBusinessName:
		return "Business Name"
	case FieldBusinessAddress:
		return "Business Address"
	case FieldPointOfContact:
		return "Point of Contact"
	case FieldPhoneNumber:
		return "Phone Number"
	case FieldOfficeSize:
		return "Office Size (Number of People)"
	}
	return string(f)
}

// Normalize trims raw input and converts it to the column's type.
func (f ProfileField) Normalize(raw string) (any, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, &ErrValidation{Field: string(f), Message: f.Label() + " is required"}
	}
	if f == FieldOfficeSize {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, &ErrValidation{Field: string(f), Message: "Office size must be a positive whole number"}
		}
		return n, nil
	}
	return v, nil
}

// WithField returns a copy of p with exactly one field changed and UpdatedAt
// stamped. value must come from Normalize.
func (p Profile) WithField(f ProfileField, value any, at time.Time) Profile {
	switch f {
	case FieldBusinessName:
		p.BusinessName, _ = value.(string)
	case FieldBusinessAddress:
		p.BusinessAddress, _ = value.(string)
	case FieldPointOfContact:
		p.PointOfContact, _ = value.(string)
	case FieldPhoneNumber:
		p.PhoneNumber, _ = value.(string)
	case FieldOfficeSize:
		p.OfficeSize, _ = value.(int)
	}
	p.UpdatedAt = at
	return p
}

// Columns returns the business fields as a column map for inserts and
// upsert-style updates.
func (p Profile) Columns() map[string]any {
	return map[string]any{
		"business_name":    p.BusinessName,
		"business_address": p.BusinessAddress,
		"office_size":      p.OfficeSize,
		"point_of_contact": p.PointOfContact,
		"phone_number":     p.PhoneNumber,
		"email":            p.Email,
	}
}

// OnboardingForm is the body for POST /v1/onboarding.
type OnboardingForm struct {
	BusinessName    string `json:"business_name"`
	BusinessAddress string `json:"business_address"`
	OfficeSize      int    `json:"office_size"`
	PointOfContact  string `json:"point_of_contact"`
	PhoneNumber     string `json:"phone_number"`
}

// Validate checks that every field is present.
func (f *OnboardingForm) Validate() error {
	f.BusinessName = strings.TrimSpace(f.BusinessName)
	f.BusinessAddress = strings.TrimSpace(f.BusinessAddress)
	f.PointOfContact = strings.TrimSpace(f.PointOfContact)
	f.PhoneNumber = strings.TrimSpace(f.PhoneNumber)

	switch {
	case f.BusinessName == "":
		return &ErrValidation{Field: "business_name", Message: "Business name is required"}
	case f.BusinessAddress == "":
		return &ErrValidation{Field: "business_address", Message: "Business address is required"}
	case f.OfficeSize < 1:
		return &ErrValidation{Field: "office_size", Message: "Office size must be at least 1"}
	case f.PointOfContact == "":
		return &ErrValidation{Field: "point_of_contact", Message: "Point of contact is required"}
	case f.PhoneNumber == "":
		return &ErrValidation{Field: "phone_number", Message: "Phone number is required"}
	}
	return nil
}

// Profile builds the record for userID.
func (f OnboardingForm) Profile(userID, email string) Profile {
	return Profile{
		UserID:          userID,
		BusinessName:    f.BusinessName,
		BusinessAddress: f.BusinessAddress,
		OfficeSize:      f.OfficeSize,
		PointOfContact:  f.PointOfContact,
		PhoneNumber:     f.PhoneNumber,
		Email:           email,
	}
}
