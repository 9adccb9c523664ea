package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/smsbackup"
)

// placeholder addresses carried by mms records that name nobody
var placeholderAddrs = map[string]struct{}{
	"insert-address-token": {},
	"unknown":              {},
}

// ImportXML streams a backup document and stores every record not already
// present.
func (r *Run) ImportXML(ctx context.Context, src io.Reader) (stats Stats, err error) {
	started := time.Now()
	defer func() { r.finish(FormatXML, started, err) }()

	dec := smsbackup.NewDecoder(src)
	for rec, decErr := range dec.Records() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return r.stats, ctxErr
		}
		if decErr != nil {
			var perr *smsbackup.ParseError
			if errors.As(decErr, &perr) && r.opts.SkipInvalid {
				r.invalid(FormatXML, decErr)
				continue
			}
			return r.stats, decErr
		}

		r.stats.Records++
		switch rec := rec.(type) {
		case *smsbackup.SMS:
			err = r.importSMS(ctx, rec)
		case *smsbackup.MMS:
			err = r.importMMS(ctx, rec)
		default:
			err = fmt.Errorf("unhandled record type %T", rec)
		}
		if err != nil {
			return r.stats, fmt.Errorf("record at offset %d: %w", rec.Offset(), err)
		}
		r.progress(FormatXML)
	}
	return r.stats, nil
}

func (r *Run) importSMS(ctx context.Context, s *smsbackup.SMS) error {
	contact, err := r.contactFor(ctx, s.Address, s.Name)
	if err != nil {
		return err
	}
	conv, err := r.conversation(ctx, contact)
	if err != nil {
		return err
	}

	direction := archive.DirectionInbox
	from := contact
	if !s.Inbound() {
		direction = archive.DirectionSent
		if from, err = r.ownerContact(ctx); err != nil {
			return err
		}
	}

	dup, err := r.isDuplicate(ctx, archive.MessageKey{
		Policy:         r.opts.XMLDedup,
		ContactID:      from.ID,
		Date:           s.Date,
		Text:           s.Body,
		ConversationID: conv.ID,
	})
	if err != nil {
		return err
	}
	if dup {
		r.duplicate(FormatXML)
		return nil
	}

	msg := &archive.Message{
		Date:           s.Date,
		Type:           archive.TypeSMS,
		Direction:      direction,
		Text:           s.Body,
		ContactID:      from.ID,
		ConversationID: conv.ID,
	}
	if err := r.store.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("create sms: %w", err)
	}
	r.inserted(FormatXML)
	return nil
}

// mmsParties works out sender and conversation members from an mms record's
// address list. The owner is never a member unless nobody else is.
func mmsParties(addrs []smsbackup.Addr, owner string) (from string, participants []string) {
	seen := make(map[string]struct{}, len(addrs))
	var all []string
	for _, a := range addrs {
		if _, skip := placeholderAddrs[strings.ToLower(strings.TrimSpace(a.Address))]; skip {
			continue
		}
		addr := archive.NormalizeAddress(a.Address)
		if addr == "" {
			continue
		}
		if a.Type == smsbackup.AddrTypeFrom {
			from = addr
		}
		if _, ok := seen[addr]; !ok {
			seen[addr] = struct{}{}
			all = append(all, addr)
		}
	}

	for _, addr := range all {
		if addr != owner {
			participants = append(participants, addr)
		}
	}
	if from == "" {
		from = owner
	}
	if len(participants) == 0 {
		participants = []string{owner}
	}
	return from, participants
}

// mmsContent picks the body and the inline images from an mms record's parts.
// The first text/plain part wins.
func mmsContent(parts []smsbackup.Part) (text *string, images []smsbackup.Part) {
	seenText := false
	for _, p := range parts {
		switch {
		case p.ContentType == "text/plain":
			if seenText {
				continue
			}
			seenText = true
			if p.Text != nil && *p.Text != "" {
				body := *p.Text
				text = &body
			}
		case strings.HasPrefix(p.ContentType, "image/") && p.Data != nil:
			images = append(images, p)
		}
	}
	return text, images
}

func (r *Run) importMMS(ctx context.Context, m *smsbackup.MMS) error {
	fromAddr, memberAddrs := mmsParties(m.Addrs, r.owner)

	from, err := r.contactFor(ctx, fromAddr, nil)
	if err != nil {
		return err
	}
	members := make([]archive.Contact, 0, len(memberAddrs))
	for _, addr := range memberAddrs {
		c, err := r.contactFor(ctx, addr, nil)
		if err != nil {
			return err
		}
		members = append(members, c)
	}
	conv, err := r.conversation(ctx, members...)
	if err != nil {
		return err
	}

	direction := archive.DirectionInbox
	if fromAddr == r.owner {
		direction = archive.DirectionSent
	}
	text, images := mmsContent(m.Parts)

	dup, err := r.isDuplicate(ctx, archive.MessageKey{
		Policy:         r.opts.XMLDedup,
		ContactID:      from.ID,
		Date:           m.Date,
		Text:           text,
		ConversationID: conv.ID,
	})
	if err != nil {
		return err
	}
	if dup {
		r.duplicate(FormatXML)
		return nil
	}

	msg := &archive.Message{
		Date:           m.Date,
		Type:           archive.TypeMMS,
		Direction:      direction,
		Text:           text,
		ContactID:      from.ID,
		ConversationID: conv.ID,
	}
	if err := r.store.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("create mms: %w", err)
	}
	r.inserted(FormatXML)

	for i, part := range images {
		md, extractErr := r.media.SaveInline(msg.ID, i, part.ContentType, *part.Data)
		if err := r.attach(ctx, FormatXML, msg.ID, i, md, extractErr); err != nil {
			return err
		}
	}
	return nil
}
