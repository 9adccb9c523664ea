package ingest

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/smsbackup"
)

var pngData = base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\nimage bytes"))

func backup(records ...string) string {
	return `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>` + "\n<smses>\n" +
		strings.Join(records, "\n") + "\n</smses>"
}

func TestImportXML_RerunInsertsOnce(t *testing.T) {
	f := newFixture(t)
	doc := backup(
		`<sms address="+1 (555) 123-4567" date="1352223744000" type="1" body="hi there" contact_name="Alice"/>`,
		`<sms address="555.123.4567" date="1352223800000" type="2" body="hey"/>`,
		`<sms address="5551234567" date="1352223900000" type="1"/>`,
	)

	stats, err := f.run(t, DefaultOptions()).ImportXML(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, Stats{Records: 3, Inserted: 3}, stats)

	again, err := f.run(t, DefaultOptions()).ImportXML(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, Stats{Records: 3, Duplicates: 3}, again)

	msgs := f.messages(t)
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.Equal(t, msgs[0].ConversationID, m.ConversationID, "one conversation for all spellings")
	}
	assert.Equal(t, archive.DirectionInbox, msgs[0].Direction)
	assert.Equal(t, archive.DirectionSent, msgs[1].Direction)
	assert.Nil(t, msgs[2].Text)

	owner, err := f.repo.FindContactByAddress(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, msgs[1].ContactID, "sent sms is attributed to the owner")
	require.NotNil(t, owner.Name)
	assert.Equal(t, OwnerLabel, *owner.Name)

	alice, err := f.repo.FindContactByAddress(context.Background(), "5551234567")
	require.NoError(t, err)
	assert.Equal(t, "Alice", *alice.Name)
}

func TestImportXML_MMSFromOwner(t *testing.T) {
	f := newFixture(t)
	doc := backup(`<mms date="1352223745000">
  <parts>
    <part ct="application/smil" text="&lt;smil/&gt;"/>
    <part ct="text/plain" text="first"/>
    <part ct="text/plain" text="second"/>
  </parts>
  <addrs>
    <addr address="` + testOwner + `" type="137"/>
    <addr address="777" type="151"/>
    <addr address="insert-address-token" type="130"/>
  </addrs>
</mms>`)

	stats, err := f.run(t, DefaultOptions()).ImportXML(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)

	msgs := f.messages(t)
	require.Len(t, msgs, 1)
	m := msgs[0]
	assert.Equal(t, archive.TypeMMS, m.Type)
	assert.Equal(t, archive.DirectionSent, m.Direction)
	require.NotNil(t, m.Text)
	assert.Equal(t, "first", *m.Text)

	members, err := f.repo.ConversationParticipants(context.Background(), m.ConversationID)
	require.NoError(t, err)
	other, err := f.repo.FindContactByAddress(context.Background(), "777")
	require.NoError(t, err)
	assert.Equal(t, []uint64{other.ID}, members)
}

func TestImportXML_MMSMediaFailureKeepsMessage(t *testing.T) {
	f := newFixture(t)
	doc := backup(`<mms date="1352223745000">
  <parts>
    <part ct="image/png" data="` + pngData + `"/>
    <part ct="image/jpeg" data="%%%corrupt%%%"/>
    <part ct="text/plain" text=""/>
  </parts>
  <addrs>
    <addr address="777" type="137"/>
    <addr address="` + testOwner + `" type="151"/>
  </addrs>
</mms>`)

	stats, err := f.run(t, DefaultOptions()).ImportXML(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 1, stats.MediaSaved)
	assert.Equal(t, 1, stats.MediaFailed)

	msgs := f.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, archive.DirectionInbox, msgs[0].Direction)
	assert.Nil(t, msgs[0].Text, "empty text part means no body")

	media := f.media(t)
	require.Len(t, media, 1)
	assert.Equal(t, msgs[0].ID, media[0].MessageID)
	assert.Equal(t, "image/png", *media[0].ContentType)
}

func TestImportXML_MMSPartsWithoutWrapper(t *testing.T) {
	f := newFixture(t)
	doc := backup(`<mms date="1352223745000">
  <addrs>
    <addr address="777" type="137"/>
    <addr address="` + testOwner + `" type="151"/>
  </addrs>
  <part ct="text/plain" text="hello"/>
  <part ct="image/png" data="` + pngData + `"/>
</mms>`)

	stats, err := f.run(t, DefaultOptions()).ImportXML(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 1, stats.MediaSaved)

	msgs := f.messages(t)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Text)
	assert.Equal(t, "hello", *msgs[0].Text)
	require.Len(t, f.media(t), 1)
}

func TestImportXML_SMSToSelfKeepsOwnerLabel(t *testing.T) {
	f := newFixture(t)
	doc := backup(`<sms address="+1 ` + testOwner + `" date="1352223744000" type="1" body="note" contact_name="Myself"/>`)

	stats, err := f.run(t, DefaultOptions()).ImportXML(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)

	owner, err := f.repo.FindContactByAddress(context.Background(), testOwner)
	require.NoError(t, err)
	require.NotNil(t, owner.Name)
	assert.Equal(t, OwnerLabel, *owner.Name)
}

func TestImportXML_InvalidRecord(t *testing.T) {
	doc := backup(
		`<sms address="5551234567" date="yesterday" type="1" body="bad"/>`,
		`<sms address="5551234567" date="1352223744000" type="1" body="good"/>`,
	)

	f := newFixture(t)
	_, err := f.run(t, DefaultOptions()).ImportXML(context.Background(), strings.NewReader(doc))
	var perr *smsbackup.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Empty(t, f.messages(t))

	opts := DefaultOptions()
	opts.SkipInvalid = true
	stats, err := f.run(t, opts).ImportXML(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Invalid)
	assert.Equal(t, 1, stats.Inserted)
}

func TestImportXML_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.run(t, DefaultOptions()).ImportXML(ctx, strings.NewReader(backup(
		`<sms address="5551234567" date="1352223744000" type="1" body="x"/>`,
	)))
	require.ErrorIs(t, err, context.Canceled)
}

func TestMMSParties(t *testing.T) {
	cases := []struct {
		name    string
		addrs   []smsbackup.Addr
		from    string
		members []string
	}{
		{
			name:    "owner sends to one",
			addrs:   []smsbackup.Addr{{Address: "555", Type: 137}, {Address: "777", Type: 151}},
			from:    "555",
			members: []string{"777"},
		},
		{
			name:    "group from other",
			addrs:   []smsbackup.Addr{{Address: "777", Type: 137}, {Address: "555", Type: 151}, {Address: "888", Type: 151}},
			from:    "777",
			members: []string{"777", "888"},
		},
		{
			name:    "no sender",
			addrs:   []smsbackup.Addr{{Address: "777", Type: 151}, {Address: "Unknown", Type: 137}},
			from:    "555",
			members: []string{"777"},
		},
		{
			name:    "owner alone",
			addrs:   []smsbackup.Addr{{Address: "555", Type: 137}},
			from:    "555",
			members: []string{"555"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			from, members := mmsParties(tc.addrs, "555")
			assert.Equal(t, tc.from, from)
			assert.Equal(t, tc.members, members)
		})
	}
}
