package normalize

import (
	"testing"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNormalizeTrimsAndCollapsesWhitespace(t *testing.T) {
	raw := domain.RawRecord{
		Author: domain.RawAuthor{Name: "  Bob  "},
		Body:   domain.RawBody{Text: strPtr("hello   world")},
	}

	msg, ok := Normalize(raw)
	require.True(t, ok)
	assert.Equal(t, "Bob", msg.Author.Name)
	assert.Equal(t, "hello world", msg.Body.Text)
	assert.Equal(t, domain.BodyPlainText, msg.Body.Kind)
}

func TestNormalizeRejectsStructurallyInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  domain.RawRecord
	}{
		{
			name: "empty record",
			raw:  domain.RawRecord{},
		},
		{
			name: "missing author name",
			raw: domain.RawRecord{
				Body: domain.RawBody{Text: strPtr("hi")},
			},
		},
		{
			name: "whitespace-only author name",
			raw: domain.RawRecord{
				Author: domain.RawAuthor{Name: "   "},
				Body:   domain.RawBody{Text: strPtr("hi")},
			},
		},
		{
			name: "absent body text field",
			raw: domain.RawRecord{
				Author: domain.RawAuthor{Name: "Bob"},
			},
		},
		{
			name: "body claiming two variants",
			raw: domain.RawRecord{
				Author: domain.RawAuthor{Name: "Bob"},
				Body: domain.RawBody{
					Text:         strPtr("hi"),
					IsMembership: true,
					IsSuperChat:  true,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Normalize(tt.raw)
			assert.False(t, ok)
		})
	}
}

func TestNormalizeEmptyBodyTextIsValid(t *testing.T) {
	raw := domain.RawRecord{
		Author: domain.RawAuthor{Name: "Bob"},
		Body:   domain.RawBody{Text: strPtr("")},
	}

	msg, ok := Normalize(raw)
	require.True(t, ok)
	assert.Equal(t, "", msg.Body.Text)
}

func TestNormalizeAuthorRoles(t *testing.T) {
	tests := []struct {
		authorType  string
		isOwner     bool
		isModerator bool
		isMember    bool
	}{
		{"owner", true, false, false},
		{"moderator", false, true, false},
		{"member", false, false, true},
		{"viewer", false, false, false},
		{"", false, false, false},
	}

	for _, tt := range tests {
		t.Run("type_"+tt.authorType, func(t *testing.T) {
			msg, ok := Normalize(domain.RawRecord{
				Author: domain.RawAuthor{Name: "Bob", Type: tt.authorType},
				Body:   domain.RawBody{Text: strPtr("hi")},
			})
			require.True(t, ok)
			assert.Equal(t, tt.isOwner, msg.Author.IsOwner)
			assert.Equal(t, tt.isModerator, msg.Author.IsModerator)
			assert.Equal(t, tt.isMember, msg.Author.IsMember)
		})
	}
}

func TestNormalizeBodyVariants(t *testing.T) {
	t.Run("membership", func(t *testing.T) {
		msg, ok := Normalize(domain.RawRecord{
			Author: domain.RawAuthor{Name: "Bob"},
			Body: domain.RawBody{
				Text:             strPtr("welcome!"),
				IsMembership:     true,
				MembershipTier:   " Tier 2 ",
				MembershipStatus: "New member",
			},
		})
		require.True(t, ok)
		assert.Equal(t, domain.BodyMembership, msg.Body.Kind)
		require.NotNil(t, msg.Body.Membership)
		assert.Equal(t, "Tier 2", msg.Body.Membership.Tier)
		assert.Equal(t, "New member", msg.Body.Membership.Status)
		assert.Nil(t, msg.Body.SuperChat)
	})

	t.Run("super chat", func(t *testing.T) {
		msg, ok := Normalize(domain.RawRecord{
			Author: domain.RawAuthor{Name: "Bob"},
			Body: domain.RawBody{
				Text:            strPtr("take my money"),
				IsSuperChat:     true,
				SuperChatAmount: "$5.00",
				SuperChatStyle:  "background-color: rgba(0,229,255,1);",
			},
		})
		require.True(t, ok)
		assert.Equal(t, domain.BodySuperChat, msg.Body.Kind)
		require.NotNil(t, msg.Body.SuperChat)
		assert.Equal(t, "$5.00", msg.Body.SuperChat.Amount)
	})

	t.Run("paid sticker", func(t *testing.T) {
		msg, ok := Normalize(domain.RawRecord{
			Author: domain.RawAuthor{Name: "Bob"},
			Body: domain.RawBody{
				Text:            strPtr(""),
				IsPaidSticker:   true,
				StickerAmount:   "$2.00",
				StickerImageURL: "https://example.com/sticker.png",
			},
		})
		require.True(t, ok)
		assert.Equal(t, domain.BodyPaidSticker, msg.Body.Kind)
		require.NotNil(t, msg.Body.PaidSticker)
	})

	t.Run("gifted membership", func(t *testing.T) {
		msg, ok := Normalize(domain.RawRecord{
			Author: domain.RawAuthor{Name: "Bob"},
			Body: domain.RawBody{
				Text:               strPtr("gifted 5 memberships"),
				IsGiftedMembership: true,
				GiftCount:          5,
			},
		})
		require.True(t, ok)
		assert.Equal(t, domain.BodyGiftedMembership, msg.Body.Kind)
		require.NotNil(t, msg.Body.GiftedMembership)
		assert.Equal(t, 5, msg.Body.GiftedMembership.Count)
	})

	t.Run("emojis", func(t *testing.T) {
		msg, ok := Normalize(domain.RawRecord{
			Author: domain.RawAuthor{Name: "Bob"},
			Body: domain.RawBody{
				Text:   strPtr("nice :smile:"),
				Emojis: []domain.Emoji{{Text: ":smile:", ImageURL: "https://example.com/e.png"}},
			},
		})
		require.True(t, ok)
		assert.Equal(t, domain.BodyWithEmojis, msg.Body.Kind)
		assert.Len(t, msg.Body.Emojis, 1)
	})
}

func TestFilterValidPreservesOrderAndDropsInvalid(t *testing.T) {
	raws := []domain.RawRecord{
		{Author: domain.RawAuthor{Name: "A"}, Body: domain.RawBody{Text: strPtr("first")}},
		{},
		{Author: domain.RawAuthor{Name: "B"}, Body: domain.RawBody{Text: strPtr("second")}},
		{Author: domain.RawAuthor{Name: "C"}},
		{Author: domain.RawAuthor{Name: "D"}, Body: domain.RawBody{Text: strPtr("third")}},
	}

	msgs := FilterValid(raws)

	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Body.Text)
	assert.Equal(t, "second", msgs[1].Body.Text)
	assert.Equal(t, "third", msgs[2].Body.Text)
}

func TestFilterValidEmptyInput(t *testing.T) {
	assert.Empty(t, FilterValid(nil))
	assert.Empty(t, FilterValid([]domain.RawRecord{}))
}
