package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Message is a single alert.
type Message struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

type Sink interface {
	Notify(ctx context.Context, msg Message) error
}

// LogSink writes alerts to the operational log. It never fails.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, msg Message) error {
	s.logger.Warn("audit alert",
		zap.Strings("recipients", msg.Recipients),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}

// MultiSink fans a message out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Notify(ctx context.Context, msg Message) error {
	var errList []error
	for _, s := range m {
		if err := s.Notify(ctx, msg); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
