package pmscanauth

import (
	"io"

	"github.com/MrEthical07/pmscanauth/internal/audit"
)

// AuditEvent is the record delivered to audit sinks.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers events on a channel; handy in tests.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes newline-delimited JSON.
type JSONWriterSink = audit.JSONWriterSink

// MultiSink fans out to several sinks.
type MultiSink = audit.MultiSink

func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }
