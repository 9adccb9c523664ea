package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/attachments"
)

// CSVDateLayout is the export's Date column, e.g. "Nov 6, 2012, 12:42:24 PM".
const CSVDateLayout = "Jan 2, 2006, 3:04:05 PM"

const (
	colDate    = "Date"
	colPhone   = "Phone Number"
	colName    = "Name"
	colMessage = "Message"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type csvRow struct {
	line   int
	fields []string
	cols   map[string]int
}

func (r csvRow) get(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// ImportCSV reads a CSV export. Attachments are looked up in idx, which may
// be nil when the export came without an attachments directory.
func (r *Run) ImportCSV(ctx context.Context, src io.Reader, idx attachments.Index) (stats Stats, err error) {
	started := time.Now()
	defer func() { r.finish(FormatCSV, started, err) }()

	br := bufio.NewReader(src)
	if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return r.stats, errors.New("csv: missing header row")
		}
		return r.stats, fmt.Errorf("csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{colDate, colPhone, colName, colMessage} {
		if _, ok := cols[required]; !ok {
			return r.stats, fmt.Errorf("csv header: missing column %q", required)
		}
	}

	me, err := r.ownerContact(ctx)
	if err != nil {
		return r.stats, err
	}

	for line := 2; ; line++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return r.stats, ctxErr
		}
		fields, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return r.stats, fmt.Errorf("csv: %w", readErr)
		}

		r.stats.Records++
		if err = r.importRow(ctx, csvRow{line: line, fields: fields, cols: cols}, me, idx); err != nil {
			return r.stats, err
		}
		r.progress(FormatCSV)
	}
	return r.stats, nil
}

func (r *Run) importRow(ctx context.Context, row csvRow, me archive.Contact, idx attachments.Index) error {
	rawDate := strings.TrimSpace(row.get(colDate))
	date, err := time.ParseInLocation(CSVDateLayout, rawDate, r.opts.Location)
	if err != nil {
		err = fmt.Errorf("csv line %d: parse date %q: %w", row.line, rawDate, err)
		if r.opts.SkipInvalid {
			r.invalid(FormatCSV, err)
			return nil
		}
		return err
	}

	name := row.get(colName)
	sent := name == OwnerLabel
	var contactName *string
	if !sent {
		contactName = &name
	}
	contact, err := r.contactFor(ctx, row.get(colPhone), contactName)
	if err != nil {
		return fmt.Errorf("csv line %d: %w", row.line, err)
	}
	conv, err := r.conversation(ctx, contact)
	if err != nil {
		return fmt.Errorf("csv line %d: %w", row.line, err)
	}

	direction := archive.DirectionInbox
	from := contact
	if sent {
		direction = archive.DirectionSent
		from = me
	}
	files := idx.Lookup(attachments.KeyForTime(date))
	text := row.get(colMessage)

	dup, err := r.isDuplicate(ctx, archive.MessageKey{
		Policy:         r.opts.CSVDedup,
		ContactID:      from.ID,
		Date:           date,
		Text:           &text,
		ConversationID: conv.ID,
	})
	if err != nil {
		return fmt.Errorf("csv line %d: %w", row.line, err)
	}
	if dup {
		r.duplicate(FormatCSV)
		return nil
	}

	msgType := archive.TypeSMS
	if len(files) > 0 {
		msgType = archive.TypeMMS
	}
	msg := &archive.Message{
		Date:           date,
		Type:           msgType,
		Direction:      direction,
		Text:           &text,
		ContactID:      from.ID,
		ConversationID: conv.ID,
	}
	if err := r.store.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("csv line %d: create message: %w", row.line, err)
	}
	r.inserted(FormatCSV)

	for i, f := range files {
		md, copyErr := r.media.CopyFile(msg.ID, i, f)
		if err := r.attach(ctx, FormatCSV, msg.ID, i, md, copyErr); err != nil {
			return err
		}
	}
	return nil
}
