package event

import (
	"time"

	"trade_dash/internal/domain"
)

// Type identifies an inbox event.
type Type string

const (
	TypeStream          Type = "STREAM"
	TypeConnection      Type = "CONNECTION"
	TypeBootstrapLoaded Type = "BOOTSTRAP_LOADED"
	TypeBootstrapFailed Type = "BOOTSTRAP_FAILED"
	TypeTraderLoaded    Type = "TRADER_LOADED"
	TypeTraderFailed    Type = "TRADER_FAILED"
)

// Event is anything posted to the dispatcher inbox.
type Event interface {
	GetType() Type
	GetTs() int64
}

// Header carries the creation time in Unix microseconds.
type Header struct {
	Ts int64
}

func (h Header) GetTs() int64 { return h.Ts }

// NewHeader stamps the current time.
func NewHeader() Header {
	return Header{Ts: time.Now().UnixMicro()}
}

// StreamEvent is a decoded frame from the transport.
type StreamEvent struct {
	Header
	Envelope *Envelope
}

func (e *StreamEvent) GetType() Type { return TypeStream }

// ConnectionEvent reports that the stream came up or went down.
type ConnectionEvent struct {
	Header
	Connected bool
}

func (e *ConnectionEvent) GetType() Type { return TypeConnection }

// BootstrapLoaded carries the full initial load.
type BootstrapLoaded struct {
	Header
	Snapshot domain.Snapshot
}

func (e *BootstrapLoaded) GetType() Type { return TypeBootstrapLoaded }

// BootstrapFailed reports that the initial load did not complete.
type BootstrapFailed struct {
	Header
	Err error
}

func (e *BootstrapFailed) GetType() Type { return TypeBootstrapFailed }

// TraderLoaded is the result of an on-demand trader re-fetch.
// Gen orders fetches; an older generation never replaces a newer one.
type TraderLoaded struct {
	Header
	Gen    uint64
	Trader domain.TraderProfile
}

func (e *TraderLoaded) GetType() Type { return TypeTraderLoaded }

// TraderFailed reports a failed re-fetch.
type TraderFailed struct {
	Header
	Gen uint64
	Err error
}

func (e *TraderFailed) GetType() Type { return TypeTraderFailed }
