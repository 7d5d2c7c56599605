// Package normalize validates and sanitizes raw extracted records into the
// canonical Message schema. Nothing unvalidated crosses into the dedup and
// broadcast core.
package normalize

import (
	"log/slog"
	"strings"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/domain"
)

// Normalize turns one raw record into a Message. The second return value is
// false for structurally invalid input: missing or blank author name, absent
// body text field, or a body claiming more than one variant. Invalid records
// are logged and dropped, never an error - a garbled DOM node must not take
// the session down.
func Normalize(raw domain.RawRecord) (domain.Message, bool) {
	name := collapseWhitespace(raw.Author.Name)
	if name == "" {
		slog.Debug("Dropping record: missing author name", "timestamp", raw.Timestamp)
		return domain.Message{}, false
	}
	if raw.Body.Text == nil {
		slog.Debug("Dropping record: missing body text", "author", name)
		return domain.Message{}, false
	}

	body, ok := normalizeBody(raw.Body)
	if !ok {
		slog.Warn("Dropping record: body claims multiple variants", "author", name)
		return domain.Message{}, false
	}

	return domain.Message{
		Author: domain.Author{
			Name:        name,
			PhotoURL:    raw.Author.PhotoURL,
			Badges:      raw.Author.Badges,
			IsOwner:     raw.Author.Type == "owner",
			IsModerator: raw.Author.Type == "moderator",
			IsMember:    raw.Author.Type == "member",
		},
		Body:             body,
		Timestamp:        strings.TrimSpace(raw.Timestamp),
		LeaderboardLabel: strings.TrimSpace(raw.Leaderboard),
	}, true
}

// FilterValid applies Normalize to each record and drops the invalid ones,
// preserving input order.
func FilterValid(raws []domain.RawRecord) []domain.Message {
	msgs := make([]domain.Message, 0, len(raws))
	for _, raw := range raws {
		if msg, ok := Normalize(raw); ok {
			msgs = append(msgs, msg)
		}
	}
	if dropped := len(raws) - len(msgs); dropped > 0 {
		slog.Debug("Filtered invalid records", "dropped", dropped, "kept", len(msgs))
	}
	return msgs
}

func normalizeBody(raw domain.RawBody) (domain.Body, bool) {
	variants := 0
	for _, claimed := range []bool{raw.IsMembership, raw.IsSuperChat, raw.IsPaidSticker, raw.IsGiftedMembership} {
		if claimed {
			variants++
		}
	}
	if variants > 1 {
		return domain.Body{}, false
	}

	body := domain.Body{Text: collapseWhitespace(*raw.Text)}

	switch {
	case raw.IsMembership:
		body.Kind = domain.BodyMembership
		body.Membership = &domain.MembershipInfo{
			Tier:   strings.TrimSpace(raw.MembershipTier),
			Status: strings.TrimSpace(raw.MembershipStatus),
		}
	case raw.IsSuperChat:
		body.Kind = domain.BodySuperChat
		body.SuperChat = &domain.SuperChatInfo{
			Amount: strings.TrimSpace(raw.SuperChatAmount),
			Style:  raw.SuperChatStyle,
		}
	case raw.IsPaidSticker:
		body.Kind = domain.BodyPaidSticker
		body.PaidSticker = &domain.PaidStickerInfo{
			Amount:   strings.TrimSpace(raw.StickerAmount),
			ImageURL: raw.StickerImageURL,
		}
	case raw.IsGiftedMembership:
		body.Kind = domain.BodyGiftedMembership
		body.GiftedMembership = &domain.GiftedMembershipInfo{Count: raw.GiftCount}
	case len(raw.Emojis) > 0:
		body.Kind = domain.BodyWithEmojis
	default:
		body.Kind = domain.BodyPlainText
	}

	if len(raw.Emojis) > 0 {
		body.Emojis = raw.Emojis
	}

	return body, true
}

// collapseWhitespace trims and squashes internal whitespace runs to single
// spaces, matching what the extraction script does for text it assembles
// from multiple DOM nodes.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
