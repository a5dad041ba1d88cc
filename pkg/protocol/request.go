package protocol

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fishfeeder/feeder-go/pkg/schedule"
)

// Request tags.
const (
	TagQuery     byte = 'u'
	TagCreate    byte = 'c'
	TagDelete    byte = 'd'
	TagManualRun byte = 'm'
)

// MaxRequestLen is the longest valid request in bytes.
const MaxRequestLen = 5

// ScheduleLen is the size of a schedule dump.
const ScheduleLen = schedule.Size

// ErrMalformedRequest indicates an unknown tag.
var ErrMalformedRequest = errors.New("malformed request")

// Request is one of Query, CreateSlot, DeleteSlot or ManualRun.
type Request interface {
	// Tag returns the wire tag.
	Tag() byte

	isRequest()
}

// Query reads the schedule.
type Query struct{}

// CreateSlot writes a slot. Values are sent verbatim.
type CreateSlot struct {
	Slot     byte
	Hour     byte
	Minute   byte
	Duration byte
}

// DeleteSlot resets a slot to unused.
type DeleteSlot struct {
	Slot byte
}

// ManualRun runs the servo for Units*100ms.
type ManualRun struct {
	Units byte
}

func (Query) Tag() byte      { return TagQuery }
func (CreateSlot) Tag() byte { return TagCreate }
func (DeleteSlot) Tag() byte { return TagDelete }
func (ManualRun) Tag() byte  { return TagManualRun }

func (Query) isRequest()      {}
func (CreateSlot) isRequest() {}
func (DeleteSlot) isRequest() {}
func (ManualRun) isRequest()  {}

// Duration returns the run time.
func (m ManualRun) Duration() time.Duration {
	return time.Duration(m.Units) * schedule.DurationUnit
}

// payloadLen returns the number of bytes following tag, or -1 for an
// unknown tag.
func payloadLen(tag byte) int {
	switch tag {
	case TagQuery:
		return 0
	case TagCreate:
		return 4
	case TagDelete, TagManualRun:
		return 1
	default:
		return -1
	}
}

// ReadRequest reads one request. It returns io.EOF if the stream ends
// before a complete request and ErrMalformedRequest for an unknown tag,
// without reading past the tag.
func ReadRequest(r io.Reader) (Request, error) {
	var buf [MaxRequestLen]byte
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return nil, eof(err)
	}

	tag := buf[0]
	n := payloadLen(tag)
	if n < 0 {
		return nil, fmt.Errorf("%w: tag %#02x", ErrMalformedRequest, tag)
	}
	if _, err := io.ReadFull(r, buf[1:1+n]); err != nil {
		return nil, eof(err)
	}

	switch tag {
	case TagQuery:
		return Query{}, nil
	case TagCreate:
		return CreateSlot{Slot: buf[1], Hour: buf[2], Minute: buf[3], Duration: buf[4]}, nil
	case TagDelete:
		return DeleteSlot{Slot: buf[1]}, nil
	default:
		return ManualRun{Units: buf[1]}, nil
	}
}

func eof(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return err
}

// EncodeRequest returns the wire form of req.
func EncodeRequest(req Request) []byte {
	switch r := req.(type) {
	case CreateSlot:
		return []byte{TagCreate, r.Slot, r.Hour, r.Minute, r.Duration}
	case DeleteSlot:
		return []byte{TagDelete, r.Slot}
	case ManualRun:
		return []byte{TagManualRun, r.Units}
	default:
		return []byte{TagQuery}
	}
}

// EncodeSchedule returns the 54-byte dump.
func EncodeSchedule(s schedule.Schedule) []byte {
	return s.Bytes()
}

// DecodeSchedule parses a 54-byte dump.
func DecodeSchedule(b []byte) (schedule.Schedule, error) {
	return schedule.Parse(b)
}

// HasResponse reports whether the device answers req with a dump.
func HasResponse(req Request) bool {
	_, manual := req.(ManualRun)
	return !manual
}
