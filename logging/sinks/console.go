package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/arthurgeek/croptails/logging"
)

// ConsoleSink renders events as human readable lines.
type ConsoleSink struct {
	logger *log.Logger
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: cfg.ReportTimestamp,
		Level:           log.DebugLevel,
	})
	return &ConsoleSink{logger: logger}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	keyvals := []any{"tick", event.Tick}
	if actor := formatEntity(event.Actor); actor != "" {
		keyvals = append(keyvals, "actor", actor)
	}
	if payload := formatPayload(event.Payload); payload != "" {
		keyvals = append(keyvals, "payload", payload)
	}
	for k, v := range event.Extra {
		keyvals = append(keyvals, k, v)
	}

	msg := string(event.Type)
	switch event.Severity {
	case logging.SeverityDebug:
		s.logger.Debug(msg, keyvals...)
	case logging.SeverityWarn:
		s.logger.Warn(msg, keyvals...)
	case logging.SeverityError:
		s.logger.Error(msg, keyvals...)
	default:
		s.logger.Info(msg, keyvals...)
	}
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}

func formatPayload(payload any) string {
	if payload == nil {
		return ""
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}
