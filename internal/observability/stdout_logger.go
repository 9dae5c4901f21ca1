package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// stdoutLogger implements Logger by writing structured lines to stdout.
type stdoutLogger struct {
	fields map[string]interface{}
	logger *log.Logger
	json   bool
	level  int
}

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

func parseLevel(s string) int {
	switch strings.ToLower(s) {
	case "debug":
		return levelDebug
	case "warn", "warning":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// NewStdoutLogger creates a logger that writes one line per entry to stdout.
// When jsonOutput is true each entry is a JSON object, otherwise a
// timestamp [LEVEL] message | key=value ... line.
func NewStdoutLogger(level string, jsonOutput bool) Logger {
	return &stdoutLogger{
		fields: make(map[string]interface{}),
		logger: log.New(os.Stdout, "", 0),
		json:   jsonOutput,
		level:  parseLevel(level),
	}
}

func (l *stdoutLogger) Info(msg string, fields ...interface{})  { l.log(levelInfo, "INFO", msg, fields...) }
func (l *stdoutLogger) Warn(msg string, fields ...interface{})  { l.log(levelWarn, "WARN", msg, fields...) }
func (l *stdoutLogger) Error(msg string, fields ...interface{}) { l.log(levelError, "ERROR", msg, fields...) }
func (l *stdoutLogger) Debug(msg string, fields ...interface{}) { l.log(levelDebug, "DEBUG", msg, fields...) }

// WithFields returns a new Logger with additional persistent fields.
func (l *stdoutLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &stdoutLogger{fields: merged, logger: l.logger, json: l.json, level: l.level}
}

func (l *stdoutLogger) log(level int, name, msg string, fields ...interface{}) {
	if level < l.level {
		return
	}
	entry := l.createEntry(name, msg, fields...)
	if l.json {
		l.logJSON(entry)
	} else {
		l.logText(entry)
	}
}

func (l *stdoutLogger) createEntry(level, msg string, fields ...interface{}) map[string]interface{} {
	entry := make(map[string]interface{})
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = level
	entry["message"] = msg

	for k, v := range l.fields {
		entry[k] = v
	}

	// Variadic fields come as key1, value1, key2, value2, ...
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if err, ok := fields[i+1].(error); ok && err != nil {
			entry[key] = err.Error()
			continue
		}
		entry[key] = fields[i+1]
	}

	return entry
}

func (l *stdoutLogger) logJSON(entry map[string]interface{}) {
	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("failed to marshal log entry: %v", err)
		return
	}
	l.logger.Println(string(jsonBytes))
}

func (l *stdoutLogger) logText(entry map[string]interface{}) {
	timestamp := entry["timestamp"]
	level := entry["level"]
	message := entry["message"]
	delete(entry, "timestamp")
	delete(entry, "level")
	delete(entry, "message")

	var fieldStrs []string
	for k, v := range entry {
		fieldStrs = append(fieldStrs, fmt.Sprintf("%s=%v", k, v))
	}

	line := fmt.Sprintf("%s [%s] %s", timestamp, level, message)
	if len(fieldStrs) > 0 {
		line += " | " + strings.Join(fieldStrs, " ")
	}
	l.logger.Println(line)
}
