package stats

import (
	"sync/atomic"

	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/intercept"
	"go.starlark.net/starlark"
)

const (
	ModelsModuleName = "statsmodels"
	ScipyModuleName  = "scipy"
)

// Library is one instance of the statistics modules, created per run like the data library.
type Library struct {
	Models *intercept.Module
	Scipy  *intercept.Module
	Tests  *intercept.Module

	OLSClass     *intercept.Class
	LogitClass   *intercept.Class
	ResultsClass *intercept.Class

	frames *frames.Library
	nextID atomic.Uint64
}

func New(frameLib *frames.Library) *Library {
	lib := &Library{
		frames: frameLib,
	}

	lib.OLSClass = lib.modelClass("OLS", "Ordinary least squares regression model.", lib.fitOLS)
	lib.OLSClass.Define("fit_regularized", starlark.NewBuiltin("fit_regularized", lib.fitRegularized))
	lib.LogitClass = lib.modelClass("Logit", "Binary logistic regression model fitted by maximum likelihood.", lib.fitLogit)

	lib.ResultsClass = intercept.NewClass("RegressionResults", "Results of a fitted regression model.")
	lib.ResultsClass.Define("summary", starlark.NewBuiltin("summary", lib.resultsSummary))
	lib.ResultsClass.Define("conf_int", starlark.NewBuiltin("conf_int", lib.resultsConfInt))

	addConstant := intercept.NewFunc("add_constant", "Add a column of ones to an array.", lib.addConstant)

	linearModel := intercept.NewModule("linear_model", "Linear regression models.", starlark.StringDict{
		"OLS":               lib.OLSClass,
		"RegressionResults": lib.ResultsClass,
	})
	discreteModel := intercept.NewModule("discrete_model", "Models for discrete outcomes.", starlark.StringDict{
		"Logit": lib.LogitClass,
	})
	regression := intercept.NewModule("regression", "Regression models.", starlark.StringDict{
		"linear_model": linearModel,
	})
	discrete := intercept.NewModule("discrete", "Discrete choice models.", starlark.StringDict{
		"discrete_model": discreteModel,
	})
	formula := intercept.NewModule("formula", "Models specified by formula strings.", starlark.StringDict{
		"ols":   intercept.NewFunc("ols", "Create an OLS model from a formula and a DataFrame.", lib.formulaModel(lib.OLSClass)),
		"logit": intercept.NewFunc("logit", "Create a Logit model from a formula and a DataFrame.", lib.formulaModel(lib.LogitClass)),
	})
	lib.Models = intercept.NewModule(ModelsModuleName, "Statistical models.", starlark.StringDict{
		"OLS":          lib.OLSClass,
		"Logit":        lib.LogitClass,
		"add_constant": addConstant,
		"regression":   regression,
		"discrete":     discrete,
		"formula":      formula,
		"tools": intercept.NewModule("tools", "Model tools.", starlark.StringDict{
			"add_constant": addConstant,
		}),
	})
	// api re-exports the root
	lib.Models.SetSlot("api", lib.Models)
	formula.SetSlot("api", formula)

	lib.Tests = intercept.NewModule("stats", "Statistical tests.", testFuncs())
	lib.Scipy = intercept.NewModule(ScipyModuleName, "Scientific computing.", starlark.StringDict{
		"stats": lib.Tests,
	})

	return lib
}

// Frames returns the data library results are built with.
func (l *Library) Frames() *frames.Library {
	return l.frames
}

// Modules returns the importable roots by name.
func (l *Library) Modules() map[string]starlark.Value {
	return map[string]starlark.Value{
		ModelsModuleName: l.Models,
		ScipyModuleName:  l.Scipy,
	}
}
