package resolve

import (
	"fmt"

	"notification-prep/internal/domain/entity"
)

// ErrInvalidBrand indicates a request-supplied brand that cannot be decoded.
// It wraps entity.ErrInvalidInput: retrying the same request cannot succeed.
var ErrInvalidBrand = fmt.Errorf("%w: invalid request brand", entity.ErrInvalidInput)
