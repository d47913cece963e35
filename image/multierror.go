package image

import "github.com/hashicorp/go-multierror"

// multierrorAppend aggregates per-track ATX parse failures so one malformed
// track record doesn't hide problems with the others, matching the
// teacher's pattern of collecting batch-validation errors instead of
// stopping at the first one.
func multierrorAppend(existing error, next error) error {
	return multierror.Append(existing, next)
}
