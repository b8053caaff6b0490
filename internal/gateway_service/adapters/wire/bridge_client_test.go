package wire

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agendazap/notification-gateway/internal/gateway_service/domain"
)

func TestClassifyBridgeStatus(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrLoggedOut},
		{http.StatusForbidden, domain.ErrLoggedOut},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusConflict, domain.ErrSessionDesync},
		{http.StatusPreconditionFailed, domain.ErrSessionDesync},
		{http.StatusUnprocessableEntity, domain.ErrInvalidRecipient},
		{http.StatusInternalServerError, domain.ErrTransient},
		{http.StatusBadGateway, domain.ErrTransient},
	}
	for _, tc := range cases {
		err := classifyBridgeStatus(tc.status, "detail")
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
	}
}
