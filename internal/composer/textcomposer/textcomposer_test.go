package textcomposer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/config"
)

type fakeSource struct {
	members  []chat.User
	commands []chat.Command
}

func (s fakeSource) Members() []chat.User      { return s.members }
func (s fakeSource) Commands() []chat.Command { return s.commands }

func newComposer(cfg config.TextConfig) *Composer {
	return New(Options{
		Config: cfg,
		Source: fakeSource{
			members: []chat.User{
				{ID: "user1", Name: "alice"},
				{ID: "user2", Name: "albert"},
				{ID: "user3", Name: "bob"},
			},
			commands: []chat.Command{
				{Name: "giphy", Description: "Post a random gif"},
				{Name: "mute"},
			},
		},
	})
}

func TestComposer_SetTextAndInsert(t *testing.T) {
	c := newComposer(config.TextConfig{Enabled: true})

	c.SetText("hello world")
	c.InsertText("big ", &Selection{Start: 6, End: 6})

	s := c.State().LatestValue()
	assert.Equal(t, "hello big world", s.Text)
	assert.Equal(t, Selection{Start: 10, End: 10}, s.Selection)
}

func TestComposer_WrapSelection(t *testing.T) {
	c := newComposer(config.TextConfig{Enabled: true})

	c.SetText("make bold")
	c.WrapSelection("**", "**", &Selection{Start: 5, End: 9})

	s := c.State().LatestValue()
	assert.Equal(t, "make **bold**", s.Text)
	assert.Equal(t, Selection{Start: 7, End: 11}, s.Selection)
}

func TestComposer_DisabledIgnoresText(t *testing.T) {
	c := newComposer(config.TextConfig{Enabled: false})

	c.SetText("ignored")

	assert.Empty(t, c.Text())
}

func TestComposer_MaxLengthOnEdit(t *testing.T) {
	c := newComposer(config.TextConfig{Enabled: true, MaxLengthOnEdit: 3})

	c.SetText("héllo")

	assert.Equal(t, "hél", c.Text())
}

func TestComposer_MentionedUsers(t *testing.T) {
	c := newComposer(config.TextConfig{Enabled: true})

	c.UpsertMentionedUser(chat.User{ID: "user1"})
	c.UpsertMentionedUser(chat.User{ID: "user1", Name: "alice"})
	c.UpsertMentionedUser(chat.User{ID: "user2"})
	c.RemoveMentionedUser("user2")

	assert.Equal(t, []chat.User{{ID: "user1", Name: "alice"}}, c.MentionedUsers())
}

func TestComposer_HandleChangeSuggestsMentions(t *testing.T) {
	c := newComposer(config.TextConfig{Enabled: true})
	ctx := context.Background()

	require.NoError(t, c.HandleChange(ctx, "hi @al", Selection{Start: 6, End: 6}))

	s := c.State().LatestValue()
	require.NotNil(t, s.Suggestions)
	assert.Equal(t, "@", s.Suggestions.Trigger)
	assert.Equal(t, "al", s.Suggestions.Query)
	require.Len(t, s.Suggestions.Items, 2)
	assert.Equal(t, "user1", s.Suggestions.Items[0].User.ID)

	require.NoError(t, c.HandleSelect(ctx, s.Suggestions.Items[0]))

	s = c.State().LatestValue()
	assert.Equal(t, "hi @alice ", s.Text)
	assert.Nil(t, s.Suggestions)
	assert.Equal(t, []chat.User{{ID: "user1", Name: "alice"}}, s.MentionedUsers)
}

func TestComposer_HandleChangeSuggestsCommands(t *testing.T) {
	c := newComposer(config.TextConfig{Enabled: true})
	ctx := context.Background()

	require.NoError(t, c.HandleChange(ctx, "/gi", Selection{Start: 3, End: 3}))

	s := c.State().LatestValue()
	require.NotNil(t, s.Suggestions)
	require.Len(t, s.Suggestions.Items, 1)

	require.NoError(t, c.HandleSelect(ctx, s.Suggestions.Items[0]))

	s = c.State().LatestValue()
	assert.Empty(t, s.Text)
	require.NotNil(t, s.Command)
	assert.Equal(t, "giphy", s.Command.Name)
}

func TestComposer_HandleChangeWithoutTrigger(t *testing.T) {
	c := newComposer(config.TextConfig{Enabled: true})

	require.NoError(t, c.HandleChange(context.Background(), "plain text /gi", Selection{Start: 14, End: 14}))

	s := c.State().LatestValue()
	assert.Equal(t, "plain text /gi", s.Text)
	assert.Nil(t, s.Suggestions, "commands only trigger at the start of the text")
}

func TestComposer_InitState(t *testing.T) {
	c := newComposer(config.TextConfig{Enabled: true})

	c.InitState(&chat.LocalMessage{Text: "seeded", MentionedUsers: []chat.User{{ID: "user1"}}})
	assert.Equal(t, "seeded", c.Text())
	assert.Len(t, c.MentionedUsers(), 1)

	c.SetCommand(&chat.Command{Name: "giphy"})
	c.InitState(nil)
	assert.Equal(t, State{}, c.State().LatestValue())
}

func TestTokenBeforeCursor(t *testing.T) {
	token, start := tokenBeforeCursor("hello @wor", 10)
	assert.Equal(t, "@wor", token)
	assert.Equal(t, 6, start)

	token, start = tokenBeforeCursor("hello ", 6)
	assert.Empty(t, token)
	assert.Equal(t, 6, start)
}
