package logger

import (
	"slices"

	"go.uber.org/zap/zapcore"
)

// Fields that mark an entry for persistence regardless of its level.
const (
	ReportIDKey     = "reportId"
	UserIDKey       = "userId"
	EvaluationIDKey = "evaluationId"
)

// DBCore is a custom Zap Core that copies warnings, errors and report related entries to the
// database writer.
type DBCore struct {
	zapcore.Core
	writer *DBLogWriter
	fields []zapcore.Field
}

// NewDBCore wraps an existing core (like console logger) and adds DB logging
func NewDBCore(baseCore zapcore.Core, writer *DBLogWriter) zapcore.Core {
	return &DBCore{
		Core:   baseCore,
		writer: writer,
	}
}

// With keeps the wrapper so child loggers still reach the database.
func (c *DBCore) With(fields []zapcore.Field) zapcore.Core {
	return &DBCore{
		Core:   c.Core.With(fields),
		writer: c.writer,
		fields: append(slices.Clone(c.fields), fields...),
	}
}

// Write is called for every log entry
func (c *DBCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	reportID, _ := enc.Fields[ReportIDKey].(string)
	if entry.Level >= zapcore.WarnLevel || reportID != "" {
		userID, _ := enc.Fields[UserIDKey].(string)
		evaluationID, _ := enc.Fields[EvaluationIDKey].(string)
		c.writer.AddLog(LogEntry{
			Level:        entry.Level,
			Message:      entry.Message,
			Caller:       entry.Caller.Function,
			ReportID:     reportID,
			UserID:       userID,
			EvaluationID: evaluationID,
			Fields:       enc.Fields,
			Time:         entry.Time,
		})
	}

	return c.Core.Write(entry, fields)
}

// Check decides if we should log this level
func (c *DBCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}
