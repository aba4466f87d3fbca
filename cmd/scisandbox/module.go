package main

import (
	"github.com/reusee/dscope"
	"github.com/reusee/scisandbox/debugloop"
	"github.com/reusee/scisandbox/debugs"
	"github.com/reusee/scisandbox/runcache"
)

type Module struct {
	dscope.Module
	DebugLoop debugloop.Module
	RunCache  runcache.Module
	Debugs    debugs.Module
}
