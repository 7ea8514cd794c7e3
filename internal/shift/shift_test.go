package shift

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "2026-08-31 07:02:11|Pagi|07:00|15:00", Key("2026-08-31 07:02:11", "Pagi", "07:00", "15:00"))
	assert.Equal(t, "", Key("", "Pagi", "07:00", "15:00"), "no check-in means no shift identity")

	a := Key("2026-08-31 07:02:11", "Pagi", "07:00", "15:00")
	b := Key("2026-08-31 15:04:00", "Sore", "15:00", "23:00")
	assert.NotEqual(t, a, b)
}

func TestNeedsReset(t *testing.T) {
	testCases := []struct {
		name    string
		prev    string
		next    string
		expects bool
	}{
		{"same shift", "a|Pagi|07:00|15:00", "a|Pagi|07:00|15:00", false},
		{"different shift", "a|Pagi|07:00|15:00", "b|Sore|15:00|23:00", true},
		{"no previous key", "", "b|Sore|15:00|23:00", false},
		{"no new key", "a|Pagi|07:00|15:00", "", false},
		{"both absent", "", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expects, NeedsReset(tc.prev, tc.next))
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Pagi (07:00-15:00)", Describe("Pagi", "07:00", "15:00"))
	assert.Equal(t, "Pagi", Describe("Pagi", "", ""))
	assert.Equal(t, "", Describe("", "07:00", "15:00"))
}

func TestIsShiftRelated(t *testing.T) {
	assert.True(t, IsShiftRelated("You are outside your shift hours"))
	assert.True(t, IsShiftRelated("Jadwal tidak ditemukan"))
	assert.True(t, IsShiftRelated("Check your work schedule"))
	assert.False(t, IsShiftRelated("Account suspended"))
	assert.False(t, IsShiftRelated(""))
}
