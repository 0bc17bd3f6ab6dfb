/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package bucket

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfiguration is returned when a bucket is constructed or configured with invalid parameters.
var ErrInvalidConfiguration = errors.New("invalid bucket configuration")

func validateParams(maxRate int, window time.Duration) error {
	if maxRate <= 0 || window <= 0 {
		return fmt.Errorf("%w: rate and window should be positive, got %d and %s",
			ErrInvalidConfiguration, maxRate, window)
	}
	return nil
}
