package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// TypeLicense is the token_type of license tokens.
const TypeLicense = "license"

// Claims is the payload of a license token.
type Claims struct {
	WorkshopCode          string   `json:"workshop_code"`
	HardwareFingerprint   string   `json:"hardware_fingerprint"`
	BusinessName          string   `json:"business_name"`
	BusinessNameLocalized string   `json:"business_name_localized,omitempty"`
	TokenType             string   `json:"token_type"`
	LicenseType           string   `json:"license_type"`
	LicenseID             string   `json:"license_id,omitempty"`
	Features              []string `json:"features,omitempty"`
	jwt.RegisteredClaims
}
