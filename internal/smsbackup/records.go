// Package smsbackup decodes the XML document written by "SMS Backup &
// Restore" one record at a time.
package smsbackup

import (
	"fmt"
	"time"
)

// Record is either *SMS or *MMS.
type Record interface {
	record()
	// Offset is the input byte offset where the record's element started.
	Offset() int64
}

const (
	// SMSTypeInbox is the only sms type code meaning a received message.
	SMSTypeInbox = 1
	// AddrTypeFrom marks the sender among an mms record's addresses.
	AddrTypeFrom = 137
)

type SMS struct {
	Date    time.Time
	Address string
	Name    *string
	Body    *string
	Type    int

	offset int64
}

func (*SMS) record() {}

func (s *SMS) Offset() int64 { return s.offset }

// Inbound reports whether the message was received rather than sent.
func (s *SMS) Inbound() bool { return s.Type == SMSTypeInbox }

type Addr struct {
	Address string
	Type    int
}

type Part struct {
	ContentType string
	Text        *string
	Data        *string
}

type MMS struct {
	Date  time.Time
	Addrs []Addr
	Parts []Part

	offset int64
}

func (*MMS) record() {}

func (m *MMS) Offset() int64 { return m.offset }

// ParseError reports a record that could not be turned into a typed value.
type ParseError struct {
	Kind   string
	Offset int64
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("smsbackup: %s record at offset %d: %s: %v", e.Kind, e.Offset, e.Field, e.Err)
	}
	return fmt.Sprintf("smsbackup: %s record at offset %d: %v", e.Kind, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
