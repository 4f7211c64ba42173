package signing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
)

func TestValidatePEM(t *testing.T) {
	valid := string(testKey(t).PublicPEM())
	body := strings.TrimSuffix(strings.TrimPrefix(valid, "-----BEGIN PUBLIC KEY-----\n"), "-----END PUBLIC KEY-----\n")

	tests := []struct {
		name    string
		input   string
		allowed []string
		wantErr bool
	}{
		{"valid public key", valid, []string{"PUBLIC KEY"}, false},
		{"surrounding whitespace", "\n\n" + valid + "\n  ", nil, false},
		{"empty", "", nil, true},
		{"missing header", body + "-----END PUBLIC KEY-----\n", nil, true},
		{"missing footer", "-----BEGIN PUBLIC KEY-----\n" + body, nil, true},
		{"mismatched labels", "-----BEGIN PUBLIC KEY-----\n" + body + "-----END PRIVATE KEY-----\n", nil, true},
		{"disallowed label", valid, []string{"RSA PRIVATE KEY"}, true},
		{"corrupt body", "-----BEGIN PUBLIC KEY-----\n!!!!notbase64!!!!\n-----END PUBLIC KEY-----\n", nil, true},
		{"two blocks", valid + valid, nil, true},
		{"encrypted headers", "-----BEGIN PUBLIC KEY-----\nProc-Type: 4,ENCRYPTED\n" + body + "-----END PUBLIC KEY-----\n", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := ValidatePEM([]byte(tt.input), tt.allowed...)
			if tt.wantErr {
				assert.ErrorIs(t, err, errs.ErrInvalidKeyMaterial)
				assert.Nil(t, block)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "PUBLIC KEY", block.Type)
		})
	}
}
