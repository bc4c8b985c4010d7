package validator

import "errors"

// Result is the presentation envelope for a finished validation.
// Valid is true exactly when Errors is empty.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors []PositionedError `json:"errors"`
}

// ResultFrom packages the outcome of Validate. A nil error or a
// *ValidationFailed becomes a Result; any other error is returned as is.
func ResultFrom(err error) (Result, error) {
	if err == nil {
		return Result{Valid: true, Errors: []PositionedError{}}, nil
	}
	var vf *ValidationFailed
	if errors.As(err, &vf) {
		return Result{Valid: len(vf.Errors) == 0, Errors: vf.Errors}, nil
	}
	return Result{}, err
}
