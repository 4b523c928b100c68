package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erpsync/backend/internal/domain/shared"
)

func TestGetHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(ErrCodeValidation))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(ErrCodeConflict))
	assert.Equal(t, http.StatusBadGateway, GetHTTPStatus(ErrCodeUpstreamAuth))
	assert.Equal(t, http.StatusServiceUnavailable, GetHTTPStatus(ErrCodeUpstreamUnavailable))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus("ERR_MADE_UP"))
}

func TestCodeForKind(t *testing.T) {
	tests := []struct {
		kind shared.ErrorKind
		want string
	}{
		{shared.KindValidation, ErrCodeValidation},
		{shared.KindConflict, ErrCodeConflict},
		{shared.KindMapping, ErrCodeMapping},
		{shared.KindAuthExpired, ErrCodeUpstreamAuth},
		{shared.KindTransientIO, ErrCodeUpstreamUnavailable},
		{shared.KindPartialWrite, ErrCodePartialWrite},
		{shared.KindUnknown, ErrCodeInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeForKind(tt.kind), "kind %s", tt.kind)
	}
}
