package log

import (
	"time"
)

// Event represents a log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the control connection (UUID), if any.
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates data flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// DeviceName is the configured device name.
	DeviceName string `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Request     *RequestEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/servo/clock state
	Feeding     *FeedingEvent     `cbor:"13,keyasint,omitempty"` // Servo runs
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates incoming data.
	DirectionIn Direction = 0
	// DirectionOut indicates outgoing data.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the connection layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the request decoding layer.
	LayerWire Layer = 1
	// LayerService is the device service layer.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates request or response data.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryFeeding indicates a servo run.
	CategoryFeeding Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryFeeding:
		return "FEEDING"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw bytes at the transport layer.
type FrameEvent struct {
	// Size is the number of bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw bytes.
	Data []byte `cbor:"2,keyasint,omitempty"`
}

// RequestEvent captures a decoded control request.
type RequestEvent struct {
	// Kind is the request kind.
	Kind RequestKind `cbor:"1,keyasint"`

	// Slot is the target slot for create and delete.
	Slot *uint8 `cbor:"2,keyasint,omitempty"`

	// Hour, Minute and Units are the create fields, or Units for a manual run.
	Hour   *uint8 `cbor:"3,keyasint,omitempty"`
	Minute *uint8 `cbor:"4,keyasint,omitempty"`
	Units  *uint8 `cbor:"5,keyasint,omitempty"`

	// ResponseSize is the number of response bytes written.
	ResponseSize int `cbor:"6,keyasint,omitempty"`

	// ProcessingTime is the time from request receipt to response.
	// Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"7,keyasint,omitempty"`
}

// RequestKind distinguishes control requests.
type RequestKind uint8

const (
	// RequestQuery reads the schedule.
	RequestQuery RequestKind = 0
	// RequestCreate writes a slot.
	RequestCreate RequestKind = 1
	// RequestDelete erases a slot.
	RequestDelete RequestKind = 2
	// RequestManualRun starts the servo.
	RequestManualRun RequestKind = 3
)

// String returns the request kind name.
func (k RequestKind) String() string {
	switch k {
	case RequestQuery:
		return "QUERY"
	case RequestCreate:
		return "CREATE"
	case RequestDelete:
		return "DELETE"
	case RequestManualRun:
		return "MANUAL_RUN"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures lifecycle changes.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityServo indicates a servo state change.
	StateEntityServo StateEntity = 1
	// StateEntityClock indicates an RTC state change (started, synced).
	StateEntityClock StateEntity = 2
	// StateEntitySchedule indicates a schedule change or reset.
	StateEntitySchedule StateEntity = 3
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityServo:
		return "SERVO"
	case StateEntityClock:
		return "CLOCK"
	case StateEntitySchedule:
		return "SCHEDULE"
	default:
		return "UNKNOWN"
	}
}

// FeedingEvent captures a servo run request.
type FeedingEvent struct {
	// Source is what requested the run.
	Source FeedingSource `cbor:"1,keyasint"`

	// Slot is the schedule slot for scheduled runs, -1 otherwise.
	Slot int `cbor:"2,keyasint"`

	// Duration is the requested run time. Stored as nanoseconds.
	Duration time.Duration `cbor:"3,keyasint"`

	// Started is false when the servo was already running.
	Started bool `cbor:"4,keyasint"`
}

// FeedingSource identifies what requested a servo run.
type FeedingSource uint8

const (
	// SourceSchedule is a scheduled slot.
	SourceSchedule FeedingSource = 0
	// SourceManual is a manual run request from a client.
	SourceManual FeedingSource = 1
	// SourceButton is the physical button.
	SourceButton FeedingSource = 2
)

// String returns the source name.
func (s FeedingSource) String() string {
	switch s {
	case SourceSchedule:
		return "SCHEDULE"
	case SourceManual:
		return "MANUAL"
	case SourceButton:
		return "BUTTON"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
