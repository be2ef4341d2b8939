package logger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-reports/internal/config"
	"go-reports/internal/database"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zapcore"
)

const LogCollection = "engine_logs"

// LogEntry holds the data passed from Zap to our worker
type LogEntry struct {
	Level        zapcore.Level
	Message      string
	Caller       string
	ReportID     string
	UserID       string
	EvaluationID string
	Fields       map[string]any
	Time         time.Time
}

// LogRecord is the persisted form of a LogEntry.
type LogRecord struct {
	AppID        string         `bson:"appId"`
	Level        string         `bson:"level"`
	Message      string         `bson:"message"`
	Caller       string         `bson:"caller,omitempty"`
	ReportID     string         `bson:"reportId,omitempty"`
	UserID       string         `bson:"userId,omitempty"`
	EvaluationID string         `bson:"evaluationId,omitempty"`
	Fields       map[string]any `bson:"fields,omitempty"`
	CreatedOnUtc time.Time      `bson:"createdOnUtc"`
}

// LogSink stores log records.
type LogSink interface {
	Insert(ctx context.Context, record LogRecord) error
}

type mongoSink struct {
	collection *mongo.Collection
}

func (s mongoSink) Insert(ctx context.Context, record LogRecord) error {
	_, err := s.collection.InsertOne(ctx, record)
	return err
}

// DBLogWriter handles the async writing
type DBLogWriter struct {
	sink    LogSink
	logChan chan LogEntry
	appId   string
	done    chan struct{}
	close   sync.Once
}

// NewDBLogWriter initializes the worker
func NewDBLogWriter(mongodb *database.MongodbDB, cfg *config.Config) *DBLogWriter {
	return newDBLogWriter(mongoSink{collection: mongodb.DB.Collection(LogCollection)}, cfg.AppId, 1000)
}

func newDBLogWriter(sink LogSink, appId string, buffer int) *DBLogWriter {
	writer := &DBLogWriter{
		sink:    sink,
		logChan: make(chan LogEntry, buffer),
		appId:   appId,
		done:    make(chan struct{}),
	}

	// Start the background worker immediately
	go writer.processLogs()

	return writer
}

// AddLog is called by our Zap hook
func (w *DBLogWriter) AddLog(entry LogEntry) {
	defer func() {
		// the writer was closed during shutdown
		_ = recover()
	}()
	select {
	case w.logChan <- entry:
	default:
		// Channel full: drop log to prevent blocking evaluations
		fmt.Println("DB Log Channel Full! Dropping log:", entry.Message)
	}
}

// Close stops accepting entries and waits until buffered ones are written or ctx ends.
func (w *DBLogWriter) Close(ctx context.Context) error {
	w.close.Do(func() { close(w.logChan) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *DBLogWriter) processLogs() {
	defer close(w.done)
	for entry := range w.logChan {
		createdOn := entry.Time
		if createdOn.IsZero() {
			createdOn = time.Now()
		}
		record := LogRecord{
			AppID:        w.appId,
			Level:        entry.Level.String(),
			Message:      entry.Message,
			Caller:       entry.Caller,
			ReportID:     entry.ReportID,
			UserID:       entry.UserID,
			EvaluationID: entry.EvaluationID,
			Fields:       entry.Fields,
			CreatedOnUtc: createdOn.UTC(),
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.sink.Insert(ctx, record); err != nil {
			fmt.Println("Failed to persist log:", err)
		}
		cancel()
	}
}
