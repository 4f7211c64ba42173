package license

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
	"github.com/doodlesbykumbi/licensing-in-go/pkg/model"
)

// MaxDurationDays bounds a single issuance or renewal term.
const MaxDurationDays = 3650

type IssueRequest struct {
	WorkshopCode          string   `json:"workshop_code" validate:"required,max=64"`
	BusinessName          string   `json:"business_name" validate:"required,max=200"`
	BusinessNameLocalized string   `json:"business_name_localized" validate:"max=200"`
	ContactEmail          string   `json:"contact_email" validate:"required,email"`
	LicenseType           string   `json:"license_type" validate:"required"`
	DurationDays          int      `json:"duration_days" validate:"gte=0,lte=3650"`
	Features              []string `json:"features_enabled" validate:"omitempty,dive,required,max=64"`
	HardwareFingerprint   string   `json:"hardware_fingerprint" validate:"max=128"`
	Actor                 string   `json:"actor" validate:"required"`
}

type IssuanceResult struct {
	LicenseID       string    `json:"license_id"`
	LicenseType     string    `json:"license_type"`
	Token           string    `json:"token"`
	TokenType       string    `json:"token_type"`
	JTI             string    `json:"jti"`
	IssuedAt        time.Time `json:"issued_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	FeaturesEnabled []string  `json:"features_enabled"`
}

// RenewRequest extends a license. LicenseType, when set, must equal the
// current type: renewal never changes it.
type RenewRequest struct {
	DurationDays int    `json:"duration_days" validate:"gte=0,lte=3650"`
	LicenseType  string `json:"license_type"`
	Reason       string `json:"reason" validate:"max=500"`
	Actor        string `json:"actor" validate:"required"`
}

type RenewalResult struct {
	LicenseID      string    `json:"license_id"`
	PreviousExpiry time.Time `json:"previous_expiry"`
	NewExpiryDate  time.Time `json:"new_expiry_date"`
	Token          string    `json:"token"`
	JTI            string    `json:"jti"`
}

type RevokeRequest struct {
	Reason          string `json:"reason" validate:"required,max=500"`
	ReasonLocalized string `json:"reason_localized" validate:"max=500"`
	Actor           string `json:"actor" validate:"required"`
}

type RevocationResult struct {
	LicenseID               string    `json:"license_id"`
	RevocationEffectiveDate time.Time `json:"revocation_effective_date"`
	TokensRevoked           int       `json:"tokens_revoked"`
	// AlreadyRevoked is set when the license was revoked by an earlier call.
	AlreadyRevoked bool `json:"already_revoked,omitempty"`
}

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs struct validation and reports every failing field in one
// InvalidRequest error.
func check(v *validator.Validate, op string, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.Wrap(errs.CodeInvalidRequest, op, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errs.New(errs.CodeInvalidRequest, op, "%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be an email address"
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "lte", "gte":
		return fmt.Sprintf("%s is out of range", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

func parseLicenseType(op, name string) (model.LicenseType, error) {
	t, err := model.LicenseTypeString(strings.TrimSpace(name))
	if err != nil {
		return 0, errs.New(errs.CodeInvalidRequest, op, "unknown license type %q", name)
	}
	return t, nil
}
