package sandbox

import (
	"errors"

	"github.com/reusee/scisandbox/guards"
	"github.com/reusee/scisandbox/issues"
	"github.com/reusee/scisandbox/overrides"
	"github.com/reusee/scisandbox/pvalues"
)

// runIssues maps errors raised on purpose by guards and overrides to issues.
func runIssues(err error) []issues.Issue {
	var runIssue *issues.RunIssueError
	if errors.As(err, &runIssue) {
		return runIssue.Issues
	}

	issue := func(category string, item string, instructions string) []issues.Issue {
		return []issues.Issue{{
			Category:     category,
			Item:         item,
			IssueText:    "Your code failed with:\n```\n" + err.Error() + "\n```",
			Instructions: instructions,
			CodeProblem:  issues.CodeProblemRuntimeError,
		}}
	}

	var seriesChanged *overrides.SeriesChangedError
	if errors.As(err, &seriesChanged) {
		return issue("Changing existing column", seriesChanged.Column,
			"Please add new columns with new names instead of changing the columns of loaded data.")
	}
	var missingColumn *overrides.MissingColumnError
	if errors.As(err, &missingColumn) {
		return issue("Missing column", missingColumn.Key,
			"Please use only the columns the dataframe has.")
	}
	var refit *overrides.RefitError
	if errors.As(err, &refit) {
		return issue("Refitting a model", refit.Class,
			"Please create a new model instance for each fit.")
	}
	var unpack *overrides.UnpackError
	if errors.As(err, &unpack) {
		return issue("Unpacking test results", unpack.Func,
			"Please access the fields of test results by name.")
	}
	var notPermitted *pvalues.OperationNotPermittedError
	if errors.As(err, &notPermitted) {
		return issue("P-value operation", string(notPermitted.Op),
			"P-values can only be compared, transformed arithmetically or saved in dataframes. "+
				"Do not format or print them yourself.")
	}
	var invalid *pvalues.InvalidValueError
	if errors.As(err, &invalid) {
		return issue("Invalid p-value", invalid.CreatedBy,
			"Please check the data passed to the test: it produced an invalid p-value.")
	}
	var warning *guards.WarningError
	if errors.As(err, &warning) {
		return issue("Runtime warning", warning.Warning.Category,
			"Please find the cause of this warning and fix the code so it does not occur.")
	}
	return nil
}
