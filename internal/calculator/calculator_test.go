package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangePercent(t *testing.T) {
	tests := []struct {
		price, prev float64
		want        float64
	}{
		{97.5, 100, -2.5},
		{101.5, 100, 1.5},
		{100, 100, 0},
		{245, 250, -2},
		{98.004, 100, -1.996},
		{101.004, 100, 1.004},
	}
	for _, tt := range tests {
		got, err := ChangePercent(tt.price, tt.prev)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, "price %.2f prev %.2f", tt.price, tt.prev)
	}
}

func TestChangePercent_KeepsPrecisionNearBoundaries(t *testing.T) {
	got, err := ChangePercent(98.004, 100)
	require.NoError(t, err)
	assert.Greater(t, got, -2.0)

	got, err = ChangePercent(101.004, 100)
	require.NoError(t, err)
	assert.Greater(t, got, 1.0)
}

func TestChangePercent_InvalidInput(t *testing.T) {
	_, err := ChangePercent(100, 0)
	assert.Error(t, err)
	_, err = ChangePercent(0, 100)
	assert.Error(t, err)
}

func TestWholeUnits_RoundsDown(t *testing.T) {
	qty, spend := WholeUnits(1000, 224.98)
	assert.Equal(t, int64(4), qty)
	assert.InDelta(t, 899.92, spend, 1e-9)
}

func TestWholeUnits_ExactMultiple(t *testing.T) {
	qty, spend := WholeUnits(1000, 250)
	assert.Equal(t, int64(4), qty)
	assert.InDelta(t, 1000, spend, 1e-9)
}

func TestWholeUnits_PriceAboveAmount(t *testing.T) {
	qty, spend := WholeUnits(500, 612.4)
	assert.Zero(t, qty)
	assert.Zero(t, spend)
}
