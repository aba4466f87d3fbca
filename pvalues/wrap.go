package pvalues

import (
	"fmt"
	"math"

	"github.com/reusee/scisandbox/issues"
)

type WrapOptions struct {
	RaiseOnNaN bool
	RaiseOnOne bool
	Display    *Display
}

var DefaultWrapOptions = WrapOptions{
	RaiseOnNaN: true,
	RaiseOnOne: true,
}

// Wrap creates a PValue from a raw float.
// Suspicious values are reported on collector; without a collector they are returned as *InvalidValueError.
func Wrap(
	raw float64,
	createdBy string,
	variableName string,
	options WrapOptions,
	collector issues.Collector,
) (PValue, error) {
	ret := PValue{
		Value:        raw,
		CreatedBy:    createdBy,
		VariableName: variableName,
		display:      options.Display,
	}

	var reason string
	switch {
	case options.RaiseOnNaN && math.IsNaN(raw):
		reason = "the p-value is NaN"
	case options.RaiseOnOne && raw == 1:
		reason = "the p-value is exactly 1"
	}
	if reason == "" {
		return ret, nil
	}

	if collector == nil {
		return ret, &InvalidValueError{
			Value:     raw,
			CreatedBy: createdBy,
			Reason:    reason,
		}
	}
	item := createdBy
	if variableName != "" {
		item = fmt.Sprintf("%s (%s)", createdBy, variableName)
	}
	collector.AddIssue(issues.Issue{
		Category:     "Invalid p-value",
		Item:         item,
		IssueText:    fmt.Sprintf("%s returned an invalid p-value: %s.", createdBy, reason),
		Instructions: "Check that the statistical test is applied to appropriate data, with enough variability and observations.",
		CodeProblem:  issues.CodeProblemOutputContentB,
	})
	return ret, nil
}
