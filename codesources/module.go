package codesources

import (
	"os"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/scisandbox/cmds"
	"github.com/reusee/scisandbox/configs"
	"github.com/reusee/scisandbox/logs"
	"github.com/reusee/scisandbox/nets"
	"github.com/reusee/scisandbox/vars"
	"golang.org/x/time/rate"
)

type Module struct {
	dscope.Module
	Nets nets.Module
}

var modelFlag = cmds.Var[string]("-model", "model name")

const (
	defaultEndpoint   = "https://api.openai.com/v1"
	defaultModel      = "gpt-4o"
	defaultKeyEnv     = "OPENAI_API_KEY"
	defaultRatePerMin = 30
)

func (Module) OpenAI(
	loader configs.Loader,
	client nets.HTTPClient,
	logger logs.Logger,
) *OpenAI {
	keyEnv := vars.FirstNonZero(
		configs.First[string](loader, "llm_api_key_env"),
		defaultKeyEnv,
	)
	perMin := vars.FirstNonZero(
		configs.First[float64](loader, "llm_rate_per_min"),
		defaultRatePerMin,
	)
	return &OpenAI{
		Endpoint: vars.FirstNonZero(
			configs.First[string](loader, "llm_endpoint"),
			defaultEndpoint,
		),
		Model: vars.FirstNonZero(
			*modelFlag,
			configs.First[string](loader, "llm_model"),
			defaultModel,
		),
		APIKey:  os.Getenv(keyEnv),
		Client:  client,
		Limiter: rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/perMin)), 1),
		Logger:  logger,
	}
}
