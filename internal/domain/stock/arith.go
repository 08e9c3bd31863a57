package stock

import (
	"math"

	"github.com/posledger/backend/internal/domain/shared"
)

// addAmounts returns a+b for non-negative a and b, or ErrInvalidArgument when
// the sum does not fit in an int64.
func addAmounts(a, b int64) (int64, error) {
	if a > math.MaxInt64-b {
		return 0, shared.Errorf(shared.ErrInvalidArgument, "%d + %d overflows int64", a, b)
	}
	return a + b, nil
}

// mulAmounts returns a*b for non-negative a and b, or ErrInvalidArgument when
// the product does not fit in an int64.
func mulAmounts(a, b int64) (int64, error) {
	if a != 0 && b > math.MaxInt64/a {
		return 0, shared.Errorf(shared.ErrInvalidArgument, "%d × %d overflows int64", a, b)
	}
	return a * b, nil
}
