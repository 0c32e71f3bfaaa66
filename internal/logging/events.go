package logging

import (
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// LogEvent represents a structured domain event
type LogEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// EventLogger writes domain events from a background goroutine so that the
// alert and report paths never block on log output.
type EventLogger struct {
	logger *Logger
	events chan LogEvent
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewEventLogger starts the event processor. Close drains pending events.
func NewEventLogger(logger *Logger) *EventLogger {
	el := &EventLogger{
		logger: logger,
		events: make(chan LogEvent, 1000),
		done:   make(chan struct{}),
	}

	el.wg.Add(1)
	go el.processEvents()
	return el
}

// LogCollector logs a collector invocation event.
func (el *EventLogger) LogCollector(level LogLevel, message, iface, op string, err error) {
	el.logEvent(level, "collector", message, map[string]interface{}{
		"interface": iface,
		"operation": op,
	}, err)
}

// LogAlert logs a threshold crossing and its delivery outcome.
func (el *EventLogger) LogAlert(level LogLevel, message, kind, periodKey string, total, limit uint64, err error) {
	el.logEvent(level, "alert", message, map[string]interface{}{
		"kind":        kind,
		"period_key":  periodKey,
		"total_bytes": total,
		"limit_bytes": limit,
	}, err)
}

// LogReport logs a scheduled report run.
func (el *EventLogger) LogReport(level LogLevel, message, kind string, err error) {
	el.logEvent(level, "report", message, map[string]interface{}{
		"kind": kind,
	}, err)
}

// LogConfig logs configuration-related events
func (el *EventLogger) LogConfig(level LogLevel, message string, configPath string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["config_path"] = configPath

	el.logEvent(level, "config", message, fields, nil)
}

// LogDaemon logs daemon lifecycle events
func (el *EventLogger) LogDaemon(level LogLevel, message string, action string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["action"] = action

	el.logEvent(level, "daemon", message, fields, nil)
}

// LogError logs an error with the caller's location
func (el *EventLogger) LogError(err error, message string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}

	if pc, file, line, ok := runtime.Caller(1); ok {
		fields["caller_file"] = filepath.Base(file)
		fields["caller_line"] = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			fields["caller_func"] = fn.Name()
		}
	}

	el.logEvent(LevelError, "error", message, fields, err)
}

func (el *EventLogger) logEvent(level LogLevel, component, message string, fields map[string]interface{}, err error) {
	event := LogEvent{
		Level:     string(level),
		Message:   message,
		Component: component,
		Timestamp: time.Now(),
		Fields:    fields,
	}

	if err != nil {
		event.Error = err.Error()
	}

	select {
	case <-el.done:
		el.logEventDirect(event)
		return
	default:
	}

	select {
	case el.events <- event:
	default:
		// Channel full, log directly to avoid blocking
		el.logEventDirect(event)
	}
}

func (el *EventLogger) logEventDirect(event LogEvent) {
	logger := el.logger.WithComponent(event.Component)

	args := make([]interface{}, 0, len(event.Fields)*2+4)
	args = append(args, "event_time", event.Timestamp)

	for k, v := range event.Fields {
		args = append(args, k, v)
	}

	if event.Error != "" {
		args = append(args, "error", event.Error)
	}

	switch LogLevel(event.Level) {
	case LevelDebug:
		logger.Debug(event.Message, args...)
	case LevelWarn:
		logger.Warn(event.Message, args...)
	case LevelError:
		logger.Error(event.Message, args...)
	default:
		logger.Info(event.Message, args...)
	}
}

func (el *EventLogger) processEvents() {
	defer el.wg.Done()
	for {
		select {
		case event := <-el.events:
			el.logEventDirect(event)
		case <-el.done:
			for {
				select {
				case event := <-el.events:
					el.logEventDirect(event)
				default:
					return
				}
			}
		}
	}
}

// Close stops the processor after writing every queued event. Events logged
// after Close are written synchronously.
func (el *EventLogger) Close() {
	el.once.Do(func() { close(el.done) })
	el.wg.Wait()
}
