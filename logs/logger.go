package logs

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/reusee/scisandbox/cmds"
	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

var (
	level    = new(slog.LevelVar)
	jsonFlag = cmds.Switch("-log-json", "log as JSON lines")
)

func init() {
	cmds.Define("-log-level", cmds.Func(func(l slog.Level) {
		level.Set(l)
	}).Desc("set log level: debug, info, warn or error"))
}

type Logger = *slog.Logger

// Logger writes to the terminal, and to the systemd journal when one is reachable.
// Under a systemd service the terminal handler is skipped since stderr already goes to the journal.
func (Module) Logger(
	writer Writer,
) Logger {
	var handlers []slog.Handler

	var local slog.Handler
	if !underSystemdService() {
		options := &slog.HandlerOptions{
			Level: level,
		}
		if *jsonFlag {
			local = slog.NewJSONHandler(writer, options)
		} else {
			local = slog.NewTextHandler(writer, options)
		}
		handlers = append(handlers, local)
	}

	journal, err := slogjournal.NewHandler(&slogjournal.Options{
		Level: level,
		ReplaceGroup: func(key string) string {
			return journalKey(key)
		},
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			a.Key = journalKey(a.Key)
			return a
		},
	})
	switch {
	case err == nil:
		handlers = append(handlers, journal)
	case local != nil:
		record := slog.NewRecord(time.Now(), slog.LevelDebug, "no systemd journal", 0)
		record.Add("error", err)
		_ = local.Handle(context.Background(), record)
	}

	return slog.New(&Handler{
		Handler: slogmulti.Fanout(handlers...),
	})
}

// journalKey maps an attribute key to the uppercase form journald accepts.
func journalKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		}
		return '_'
	}, key)
}

func underSystemdService() bool {
	if os.Getenv("INVOCATION_ID") == "" {
		return false
	}
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	for line := range strings.Lines(string(content)) {
		parts := strings.SplitN(strings.TrimSpace(line), ":", 3)
		if len(parts) == 3 && strings.HasSuffix(parts[2], ".service") {
			return true
		}
	}
	return false
}
