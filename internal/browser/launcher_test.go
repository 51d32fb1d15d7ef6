package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/uidetect/internal/config"
	"github.com/testforge/uidetect/internal/domain"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{raw: "https://shop.example.com/login"},
		{raw: "http://localhost:3000"},
		{raw: "ftp://example.com", wantErr: true},
		{raw: "file:///etc/passwd", wantErr: true},
		{raw: "example.com/login", wantErr: true},
		{raw: "https://", wantErr: true},
		{raw: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := ValidateURL(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.ErrCodeValidation, domain.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.raw, u.String())
		})
	}
}

func TestNew_UnknownEngine(t *testing.T) {
	_, err := New(config.BrowserConfig{Engine: "lynx"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown browser engine "lynx"`)
}
