// Package cronutil wraps github.com/adhocore/gronx for the two places the
// server deals in cron expressions: validating a guide command's
// `schedule=...` argument (§4.J's argument parser rejects a malformed
// expression before the command ever reaches template rendering) and
// computing the next scheduled health-check time shown by `doctor`.
package cronutil

import (
	"time"

	"github.com/adhocore/gronx"
)

// Valid reports whether expr is a well-formed cron expression.
func Valid(expr string) bool {
	return gronx.IsValid(expr)
}

// NextTick returns the next time expr fires strictly after ref.
func NextTick(expr string, ref time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, ref, false)
}
