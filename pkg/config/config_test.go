package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEndpointLimits_Production(t *testing.T) {
	limits := DefaultEndpointLimits("production")
	require.Len(t, limits, 3)

	assert.Equal(t, EndpointLimit{Name: "login", PathPrefix: "/api/auth/login", Limit: 5, Window: "15m"}, limits[0])
	assert.Equal(t, EndpointLimit{Name: "withdrawal", PathPrefix: "/api/withdrawals", Limit: 10, Window: "1h"}, limits[1])
	assert.Equal(t, EndpointLimit{Name: "bet", PathPrefix: "/api/bets", Limit: 30, Window: "1m"}, limits[2])
}

func TestDefaultEndpointLimits_Development(t *testing.T) {
	limits := DefaultEndpointLimits("development")
	require.Len(t, limits, 3)

	assert.Equal(t, 50, limits[0].Limit)
	assert.Equal(t, 100, limits[1].Limit)
	assert.Equal(t, 300, limits[2].Limit)
}
