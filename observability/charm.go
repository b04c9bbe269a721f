package observability

import charmlog "github.com/charmbracelet/log"

// charmLogger adapts a charmbracelet logger to the Logger interface.
type charmLogger struct {
	l *charmlog.Logger
}

// NewCharmLogger wraps a charmbracelet/log logger so it can be passed into
// library components.
func NewCharmLogger(l *charmlog.Logger) Logger {
	return &charmLogger{l: l}
}

func kv(fields []Field) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key(), f.Value())
	}
	return out
}

func (c *charmLogger) Debug(msg string, fields ...Field) { c.l.Debug(msg, kv(fields)...) }
func (c *charmLogger) Info(msg string, fields ...Field)  { c.l.Info(msg, kv(fields)...) }
func (c *charmLogger) Warn(msg string, fields ...Field)  { c.l.Warn(msg, kv(fields)...) }
func (c *charmLogger) Error(msg string, fields ...Field) { c.l.Error(msg, kv(fields)...) }

func (c *charmLogger) With(fields ...Field) Logger {
	return &charmLogger{l: c.l.With(kv(fields)...)}
}
