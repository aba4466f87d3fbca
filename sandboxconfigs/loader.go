package sandboxconfigs

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/reusee/scisandbox/cmds"
	"github.com/reusee/scisandbox/configs"
	"github.com/reusee/scisandbox/logs"
)

//go:embed schema.cue
var schema string

func Schema() string {
	return schema
}

var filenames = []string{
	"scisandbox.cue",
	".scisandbox.cue",
}

var setFlag = cmds.Collect[string]("-set", `override config, as CUE, like 'review: max_table_rows: 30'`)

func (Module) ConfigsLoader(
	logger logs.Logger,
) configs.Loader {
	paths := ConfigPaths()
	if len(paths) > 0 {
		logger.Info("config file",
			"paths", paths,
		)
	}
	return Overlay(configs.NewLoader(paths, schema), *setFlag)
}

// Overlay puts settings given on the command line ahead of the config files, last one first.
func Overlay(loader configs.Loader, sets []string) configs.Loader {
	for i, src := range sets {
		loader = loader.WithOverlay(fmt.Sprintf("-set#%d", i+1), src, schema)
	}
	return loader
}

// ConfigPaths returns existing config files, most specific first.
func ConfigPaths() (paths []string) {
	var dirs []string

	// working directory
	if workingDir, err := os.Getwd(); err == nil {
		dirs = append(dirs, workingDir)
	}

	// user config dir
	if configDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, configDir)
	}

	// system wide dir
	dirs = append(dirs, "/etc")

	for _, dir := range dirs {
		for _, filename := range filenames {
			path := filepath.Join(dir, filename)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		}
	}
	return
}
