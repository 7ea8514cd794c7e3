package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	testCases := []struct {
		name        string
		loc         Location
		maxAccuracy float64
		expectedErr error
	}{
		{"valid fix", Location{Latitude: -6.2, Longitude: 106.8, Accuracy: 12}, 50, nil},
		{"mocked location", Location{Latitude: -6.2, Longitude: 106.8, Accuracy: 5, Mocked: true}, 50, ErrMockedLocation},
		{"low accuracy", Location{Latitude: -6.2, Longitude: 106.8, Accuracy: 120}, 50, ErrLowAccuracy},
		{"accuracy check disabled", Location{Accuracy: 500}, 0, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.loc, tc.maxAccuracy)
			if tc.expectedErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.expectedErr)
			}
		})
	}
}

func TestDistance(t *testing.T) {
	// Monas to Istiqlal, roughly 700m.
	d := Distance(-6.1754, 106.8272, -6.1702, 106.8310)
	assert.InDelta(t, 710, d, 60)

	assert.Zero(t, Distance(-6.2, 106.8, -6.2, 106.8))
}

func TestWithinRadius(t *testing.T) {
	center := Location{Latitude: -6.2000, Longitude: 106.8000, Accuracy: 5}
	assert.True(t, WithinRadius(center, -6.2000, 106.8000, 20))

	// ~111m north of the fence center, 50m radius: outside even with accuracy allowance.
	far := Location{Latitude: -6.1990, Longitude: 106.8000, Accuracy: 5}
	assert.False(t, WithinRadius(far, -6.2000, 106.8000, 50))

	// Same fix but a coarse accuracy large enough to cover the gap.
	coarse := Location{Latitude: -6.1990, Longitude: 106.8000, Accuracy: 80}
	assert.True(t, WithinRadius(coarse, -6.2000, 106.8000, 50))
}
