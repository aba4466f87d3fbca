package runcache

import (
	"context"

	"github.com/reusee/dscope"
	"github.com/reusee/scisandbox/configs"
	"github.com/reusee/scisandbox/logs"
	"github.com/reusee/scisandbox/sandboxconfigs"
	"github.com/reusee/scisandbox/vars"
)

type Module struct {
	dscope.Module
	Configs sandboxconfigs.Module
}

const defaultSize = 256

func (Module) Cache(
	file sandboxconfigs.CacheFile,
	loader configs.Loader,
	logger logs.Logger,
) *Cache {
	size := vars.FirstNonZero(
		configs.First[int](loader, "cache_size"),
		defaultSize,
	)
	c, err := New(context.Background(), string(file), size, logger)
	if err != nil {
		panic(err)
	}
	return c
}
