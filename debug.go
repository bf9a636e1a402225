package mcp2517fd

import (
	"context"
	"log/slog"
)

// levelTrace logs every register access.
const levelTrace slog.Level = slog.LevelDebug - 1

func (c *Controller) logerr(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelError, msg, attrs...)
}

func (c *Controller) warn(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelWarn, msg, attrs...)
}

func (c *Controller) info(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelInfo, msg, attrs...)
}

func (c *Controller) debug(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelDebug, msg, attrs...)
}

func (c *Controller) trace(msg string, attrs ...slog.Attr) {
	if c._traceenabled {
		c.logattrs(levelTrace, msg, attrs...)
	}
}

func (c *Controller) debugEnabled() bool {
	return c.logger != nil && c.logger.Handler().Enabled(context.Background(), slog.LevelDebug)
}

func (c *Controller) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if c.logger == nil {
		return
	}
	c.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LevelString returns the name of level, naming the trace level used by
// Controller for register accesses. Useful as slog.HandlerOptions.ReplaceAttr.
func LevelString(level slog.Level) string {
	if level == levelTrace {
		return "TRACE"
	}
	return level.String()
}
