package lending

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestResizePool(t *testing.T) {
	tests := []struct {
		name          string
		total         int
		available     int
		newTotal      int
		wantAvailable int
		wantErr       error
	}{
		{name: "grow idle pool", total: 2, available: 2, newTotal: 5, wantAvailable: 5},
		{name: "grow with copies on loan", total: 2, available: 1, newTotal: 4, wantAvailable: 3},
		{name: "shrink to on-loan count", total: 5, available: 3, newTotal: 2, wantAvailable: 0},
		{name: "shrink below on-loan count", total: 5, available: 1, newTotal: 3, wantErr: ErrCapacityTooSmall},
		{name: "unchanged", total: 3, available: 2, newTotal: 3, wantAvailable: 2},
		{name: "shrink to zero when idle", total: 3, available: 3, newTotal: 0, wantAvailable: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resizePool(tt.total, tt.available, tt.newTotal)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAvailable, got)
		})
	}
}

func TestResizePoolProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(0, 1000).Draw(t, "total")
		available := rapid.IntRange(0, total).Draw(t, "available")
		newTotal := rapid.IntRange(0, 1000).Draw(t, "newTotal")

		newAvailable, err := resizePool(total, available, newTotal)
		inUse := total - available

		if newTotal < inUse {
			if err == nil {
				t.Fatalf("expected ErrCapacityTooSmall for inUse=%d newTotal=%d", inUse, newTotal)
			}
			return
		}

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if newAvailable < 0 || newAvailable > newTotal {
			t.Fatalf("available %d out of range [0,%d]", newAvailable, newTotal)
		}
		if newTotal-newAvailable != inUse {
			t.Fatalf("copies on loan changed: had %d, now %d", inUse, newTotal-newAvailable)
		}
	})
}
