package comparison

import (
	"fmt"

	"github.com/cqm/cqm/internal/domain/measurereport"
)

// PartialEvaluationError reports that exactly one evaluation path failed.
// The surviving path's report is retained so callers can still display it;
// retrying is an external policy, safe only for transient store failures.
type PartialEvaluationError struct {
	FailedPath measurereport.Method
	Cause      error
	Report     *measurereport.MeasureReport
}

func (e *PartialEvaluationError) Error() string {
	return fmt.Sprintf("evaluation path %s failed: %v", e.FailedPath, e.Cause)
}

func (e *PartialEvaluationError) Unwrap() error { return e.Cause }
