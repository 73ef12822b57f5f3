package store

import (
	"github.com/liliang-cn/vectorcore/pkg/entity"
	"github.com/liliang-cn/vectorcore/pkg/vecerrors"
)

// checkDimensionLocked validates got against lib's established dimension.
// An unestablished dimension (0, no chunks yet) accepts any length. Assumes
// the lock is already held.
func (s *Store) checkDimensionLocked(lib *entity.Library, got int) error {
	if !s.mu.HeldByCaller() {
		panic("store: checkDimensionLocked called without the lock held")
	}
	if lib.Dimension != 0 && got != lib.Dimension {
		return vecerrors.Newf("store.dimension", vecerrors.DimensionMismatch,
			"expected dimension %d, got %d", lib.Dimension, got)
	}
	return nil
}

// establishDimensionLocked sets lib's dimension on the first chunk it ever
// receives. Assumes the lock is already held.
func (s *Store) establishDimensionLocked(lib *entity.Library, dim int) {
	if !s.mu.HeldByCaller() {
		panic("store: establishDimensionLocked called without the lock held")
	}
	if lib.Dimension == 0 {
		lib.Dimension = dim
	}
}
