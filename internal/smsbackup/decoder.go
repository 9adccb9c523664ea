package smsbackup

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"time"
)

// unknownContactName is what the backup app writes when it has no name.
const unknownContactName = "(Unknown)"

var errMissing = errors.New("attribute missing")

type rawSMS struct {
	Date        *string `xml:"date,attr"`
	Address     *string `xml:"address,attr"`
	Name        *string `xml:"name,attr"`
	ContactName *string `xml:"contact_name,attr"`
	Body        *string `xml:"body,attr"`
	Type        *string `xml:"type,attr"`
}

type rawAddr struct {
	Address *string `xml:"address,attr"`
	Type    *string `xml:"type,attr"`
}

type rawPart struct {
	ContentType *string `xml:"ct,attr"`
	Text        *string `xml:"text,attr"`
	Data        *string `xml:"data,attr"`
}

type rawMMS struct {
	Date  *string
	Addrs []rawAddr
	Parts []rawPart
}

// UnmarshalXML takes addr elements from the addrs child only, but part
// elements from any depth, with or without a parts wrapper.
func (raw *rawMMS) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		if a.Name.Local == "date" {
			v := a.Value
			raw.Date = &v
		}
	}

	// open elements below mms
	var path []string
	for {
		tok, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "part":
				var p rawPart
				if err := d.DecodeElement(&p, &t); err != nil {
					return err
				}
				raw.Parts = append(raw.Parts, p)
				continue
			case t.Name.Local == "addr" && len(path) == 1 && path[0] == "addrs":
				var a rawAddr
				if err := d.DecodeElement(&a, &t); err != nil {
					return err
				}
				raw.Addrs = append(raw.Addrs, a)
				continue
			}
			path = append(path, t.Name.Local)
		case xml.EndElement:
			if len(path) == 0 {
				return nil
			}
			path = path[:len(path)-1]
		}
	}
}

// Decoder reads sms and mms elements from a backup document. Only the element
// being decoded is held in memory; everything before it has been discarded
// by the underlying token stream.
type Decoder struct {
	dec  *xml.Decoder
	done bool
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: xml.NewDecoder(r)}
}

// Next returns the next record. It returns io.EOF once the document is
// exhausted. A *ParseError leaves the decoder usable; any other error is
// terminal.
func (d *Decoder) Next() (Record, error) {
	if d.done {
		return nil, io.EOF
	}
	for {
		tok, err := d.dec.Token()
		if err != nil {
			d.done = true
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("smsbackup: read token: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		offset := d.dec.InputOffset()
		switch start.Name.Local {
		case "sms":
			var raw rawSMS
			if err := d.dec.DecodeElement(&raw, &start); err != nil {
				d.done = true
				return nil, fmt.Errorf("smsbackup: decode sms at offset %d: %w", offset, err)
			}
			return raw.record(offset)
		case "mms":
			var raw rawMMS
			if err := d.dec.DecodeElement(&raw, &start); err != nil {
				d.done = true
				return nil, fmt.Errorf("smsbackup: decode mms at offset %d: %w", offset, err)
			}
			return raw.record(offset)
		}
	}
}

// Records yields every record in document order. Iteration stops after a
// terminal error has been yielded; parse errors are yielded and iteration
// continues. The sequence cannot be restarted.
func (d *Decoder) Records() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) {
				return
			}
			var perr *ParseError
			if err != nil && !errors.As(err, &perr) {
				return
			}
		}
	}
}

func parseMillis(v *string) (time.Time, error) {
	if v == nil {
		return time.Time{}, errMissing
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(*v), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func parseCode(v *string, def int) (int, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return def, nil
	}
	return strconv.Atoi(strings.TrimSpace(*v))
}

func (raw rawSMS) record(offset int64) (Record, error) {
	date, err := parseMillis(raw.Date)
	if err != nil {
		return nil, &ParseError{Kind: "sms", Offset: offset, Field: "date", Err: err}
	}
	if raw.Address == nil {
		return nil, &ParseError{Kind: "sms", Offset: offset, Field: "address", Err: errMissing}
	}
	typ, err := parseCode(raw.Type, SMSTypeInbox)
	if err != nil {
		return nil, &ParseError{Kind: "sms", Offset: offset, Field: "type", Err: err}
	}

	name := raw.Name
	if name == nil && raw.ContactName != nil && *raw.ContactName != unknownContactName {
		name = raw.ContactName
	}
	if name != nil && *name == "" {
		name = nil
	}

	return &SMS{
		Date:    date,
		Address: *raw.Address,
		Name:    name,
		Body:    raw.Body,
		Type:    typ,
		offset:  offset,
	}, nil
}

func (raw rawMMS) record(offset int64) (Record, error) {
	date, err := parseMillis(raw.Date)
	if err != nil {
		return nil, &ParseError{Kind: "mms", Offset: offset, Field: "date", Err: err}
	}

	m := &MMS{
		Date:   date,
		Addrs:  make([]Addr, 0, len(raw.Addrs)),
		Parts:  make([]Part, 0, len(raw.Parts)),
		offset: offset,
	}
	for i, a := range raw.Addrs {
		typ, err := parseCode(a.Type, 0)
		if err != nil {
			return nil, &ParseError{Kind: "mms", Offset: offset, Field: fmt.Sprintf("addrs[%d].type", i), Err: err}
		}
		var addr string
		if a.Address != nil {
			addr = *a.Address
		}
		m.Addrs = append(m.Addrs, Addr{Address: addr, Type: typ})
	}
	for _, p := range raw.Parts {
		var ct string
		if p.ContentType != nil {
			ct = *p.ContentType
		}
		m.Parts = append(m.Parts, Part{ContentType: ct, Text: p.Text, Data: p.Data})
	}
	return m, nil
}
