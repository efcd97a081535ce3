package llm

import (
	"context"

	"github.com/rs/zerolog"
)

// RoundTripLogger is middleware that logs one line per model round trip.
// Wired inside the retry layer it sees every attempt, not just the final
// outcome, which is what you want when diagnosing provider flakiness.
type RoundTripLogger struct {
	logger zerolog.Logger
}

// NewRoundTripLogger creates middleware that logs each request before it is
// sent and the response or error after, all at debug level.
func NewRoundTripLogger(logger zerolog.Logger) *RoundTripLogger {
	return &RoundTripLogger{
		logger: logger.With().Str("component", "roundTripLogger").Logger(),
	}
}

// BeforeRequest logs the shape of the outgoing request.
func (m *RoundTripLogger) BeforeRequest(ctx context.Context, req *Request) (*Request, error) {
	m.logger.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Msg("Sending model request")
	return req, nil
}

// AfterResponse logs the stop reason and token usage of a completed call.
func (m *RoundTripLogger) AfterResponse(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	ev := m.logger.Debug().
		Str("model", req.Model).
		Str("stop_reason", resp.StopReason)
	if resp.Usage != nil {
		ev = ev.
			Int64("input_tokens", resp.Usage.InputTokens).
			Int64("output_tokens", resp.Usage.OutputTokens)
	}
	ev.Msg("Model request completed")
	return resp, nil
}

// OnError logs the failure and leaves the error untouched.
func (m *RoundTripLogger) OnError(ctx context.Context, req *Request, err error) error {
	m.logger.Debug().
		Str("model", req.Model).
		Err(err).
		Msg("Model request failed")
	return err
}

// Ensure RoundTripLogger implements Middleware
var _ Middleware = (*RoundTripLogger)(nil)
