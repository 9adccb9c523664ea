package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedConversation stores n messages one minute apart, oldest first.
func seedConversation(t *testing.T, repo *Repo, n int) (Conversation, []Message) {
	t.Helper()
	ctx := context.Background()
	alice, err := NewContactResolver(repo).Resolve(ctx, "5551234567", ptrTo("Alice"))
	require.NoError(t, err)
	conv, err := NewConversationResolver(repo).Resolve(ctx, []Contact{alice.Value})
	require.NoError(t, err)

	base := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	msgs := make([]Message, 0, n)
	for i := range n {
		m := Message{
			Date:           base.Add(time.Duration(i) * time.Minute),
			Type:           TypeSMS,
			Direction:      DirectionInbox,
			Text:           ptrTo("message " + string(rune('a'+i))),
			ContactID:      alice.Value.ID,
			ConversationID: conv.Value.ID,
		}
		require.NoError(t, repo.CreateMessage(ctx, &m))
		msgs = append(msgs, m)
	}
	return conv.Value, msgs
}

func ids(views []MessageView) []uint64 {
	out := make([]uint64, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestListMessages_Paging(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(openTestDB(t))
	conv, msgs := seedConversation(t, repo, 5)

	first, err := repo.ListMessages(ctx, conv.ID, PageCursor{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), first.Total)
	assert.Equal(t, []uint64{msgs[4].ID, msgs[3].ID}, ids(first.Messages))
	assert.True(t, first.HasMore)
	assert.False(t, first.HasNewer)
	assert.Equal(t, "Alice", first.Messages[0].Sender)

	older, err := repo.ListMessages(ctx, conv.ID, PageCursor{Limit: 2, BeforeID: msgs[3].ID})
	require.NoError(t, err)
	assert.Equal(t, []uint64{msgs[2].ID, msgs[1].ID}, ids(older.Messages))
	assert.True(t, older.HasMore)
	assert.True(t, older.HasNewer)

	last, err := repo.ListMessages(ctx, conv.ID, PageCursor{Limit: 2, BeforeID: msgs[1].ID})
	require.NoError(t, err)
	assert.Equal(t, []uint64{msgs[0].ID}, ids(last.Messages))
	assert.False(t, last.HasMore)

	newer, err := repo.ListMessages(ctx, conv.ID, PageCursor{Limit: 2, AfterID: msgs[0].ID})
	require.NoError(t, err)
	assert.Equal(t, []uint64{msgs[2].ID, msgs[1].ID}, ids(newer.Messages), "newest first")
	assert.True(t, newer.HasMore)
	assert.True(t, newer.HasNewer)
}

func TestListMessages_SharedTimestamp(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(openTestDB(t))
	conv, msgs := seedConversation(t, repo, 4)
	same := msgs[1].Date
	require.NoError(t, repo.db.Model(&Message{}).
		Where("id IN ?", []uint64{msgs[2].ID, msgs[3].ID}).
		Update("date", same).Error)

	first, err := repo.ListMessages(ctx, conv.ID, PageCursor{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []uint64{msgs[3].ID, msgs[2].ID}, ids(first.Messages))
	assert.True(t, first.HasMore)

	older, err := repo.ListMessages(ctx, conv.ID, PageCursor{Limit: 2, BeforeID: msgs[2].ID})
	require.NoError(t, err)
	assert.Equal(t, []uint64{msgs[1].ID, msgs[0].ID}, ids(older.Messages))
	assert.False(t, older.HasMore)
	assert.True(t, older.HasNewer)

	newer, err := repo.ListMessages(ctx, conv.ID, PageCursor{Limit: 2, AfterID: msgs[1].ID})
	require.NoError(t, err)
	assert.Equal(t, []uint64{msgs[3].ID, msgs[2].ID}, ids(newer.Messages))
	assert.False(t, newer.HasNewer)
}

func TestSearchMessagesAndMedia(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(openTestDB(t))
	conv, msgs := seedConversation(t, repo, 3)

	found, err := repo.SearchMessages(ctx, conv.ID, "MESSAGE B")
	require.NoError(t, err)
	assert.Equal(t, []uint64{msgs[1].ID}, ids(found))

	ct, name, path := "image/png", "2_0.png", "/tmp/2_0.png"
	md := &Media{MessageID: msgs[1].ID, ContentType: &ct, Filename: &name, FilePath: &path}
	require.NoError(t, repo.CreateMedia(ctx, md))

	view, err := repo.GetMessageView(ctx, msgs[1].ID)
	require.NoError(t, err)
	require.Len(t, view.Media, 1)
	assert.Equal(t, md.ID, view.Media[0].ID)

	page, err := repo.ListConversationMedia(ctx, conv.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Media, 1)
	require.NotNil(t, page.Media[0].Address)
	assert.Equal(t, "5551234567", *page.Media[0].Address)
	assert.False(t, page.HasMore)

	_, err = repo.GetMediaView(ctx, md.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListConversations_Search(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(openTestDB(t))
	conv, _ := seedConversation(t, repo, 1)

	all, err := repo.ListConversations(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, conv.ID, all[0].ID)
	require.Len(t, all[0].Contacts, 1)

	hit, err := repo.ListConversations(ctx, "alic")
	require.NoError(t, err)
	assert.Len(t, hit, 1)

	miss, err := repo.ListConversations(ctx, "zed")
	require.NoError(t, err)
	assert.Empty(t, miss)
}
