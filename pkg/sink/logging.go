package sink

import (
	"context"
	"log/slog"

	"github.com/fluxorio/playground/pkg/core/failfast"
	"github.com/fluxorio/playground/pkg/task"
)

// Logging writes every update to a slog.Logger. Terminal errors are
// logged at warn level.
type Logging struct {
	logger *slog.Logger
}

func NewLogging(logger *slog.Logger) *Logging {
	failfast.NotNil(logger, "logger")
	return &Logging{logger: logger}
}

func (l *Logging) OnUpdate(u Update) {
	level := slog.LevelInfo
	if u.State == task.StateError {
		level = slog.LevelWarn
	}
	l.logger.Log(context.Background(), level, "task state",
		"task", string(u.Task),
		"state", u.State.String(),
		"seq", u.Seq,
	)
}
