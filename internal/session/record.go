// Package session provides type definitions for session records persisted
// across the CVPerfect payment flow.
package session

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Plan is the entitlement tier selected by the user.
type Plan string

// Known plans, from cheapest to most featureful.
const (
	PlanBasic   Plan = "basic"
	PlanGold    Plan = "gold"
	PlanPremium Plan = "premium"
)

// Valid reports whether the plan is one of the three known tiers.
func (p Plan) Valid() bool {
	switch p {
	case PlanBasic, PlanGold, PlanPremium:
		return true
	}
	return false
}

// NormalizePlan maps any unrecognized plan value to basic. The store never
// normalizes on read; callers applying user input do.
func NormalizePlan(p Plan) Plan {
	if p.Valid() {
		return p
	}
	return PlanBasic
}

// PaymentStatus is set by the payment webhook, an external collaborator.
// This subsystem stores and returns it but never transitions it.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Record is the durable unit of session persistence: everything the user
// entered before being redirected to the payment provider.
type Record struct {
	SessionID     string        `json:"session_id"`
	ResumeText    string        `json:"resume_text" validate:"required,min=1"`
	JobPosting    *string       `json:"job_posting,omitempty"`
	Email         string        `json:"email" validate:"required,email"`
	Plan          Plan          `json:"plan"`
	Template      string        `json:"template"`
	Photo         *string       `json:"photo,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// Validate checks the save-time constraints: resume text and email must be
// non-empty and the email must look like an email. Plan and template are not
// required; Save applies defaults for those.
func (r *Record) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return &ValidationError{Field: first.Field(), Message: validationMessage(first)}
		}
		return err
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "min":
		return "is required"
	case "email":
		return "must be a valid email address"
	default:
		return "is invalid"
	}
}

// Clone returns a deep copy of the record so callers can hand out state
// without sharing pointers into the store.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.JobPosting != nil {
		jp := *r.JobPosting
		out.JobPosting = &jp
	}
	if r.Photo != nil {
		p := *r.Photo
		out.Photo = &p
	}
	return &out
}
