package domain

// BodyKind tags the variant of a message body. Exactly one variant applies
// to any given message.
type BodyKind string

const (
	BodyPlainText        BodyKind = "text"
	BodyWithEmojis       BodyKind = "emoji"
	BodyMembership       BodyKind = "membership"
	BodySuperChat        BodyKind = "superchat"
	BodyPaidSticker      BodyKind = "sticker"
	BodyGiftedMembership BodyKind = "gift"
)

// Emoji is a custom emote rendered inline in a message.
type Emoji struct {
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
}

// Badge is an author badge (moderator wrench, membership seal, ...).
type Badge struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Author identifies the sender of a message.
type Author struct {
	Name        string  `json:"name"`
	PhotoURL    string  `json:"photoUrl"`
	Badges      []Badge `json:"badges,omitempty"`
	IsOwner     bool    `json:"isOwner"`
	IsModerator bool    `json:"isModerator"`
	IsMember    bool    `json:"isMember"`
}

// MembershipInfo carries the tier and status strings of a membership event.
type MembershipInfo struct {
	Tier   string `json:"tier"`
	Status string `json:"status"`
}

// SuperChatInfo carries the display amount and background style of a super chat.
type SuperChatInfo struct {
	Amount string `json:"amount"`
	Style  string `json:"style,omitempty"`
}

// PaidStickerInfo carries the display amount and sticker image of a paid sticker.
type PaidStickerInfo struct {
	Amount   string `json:"amount"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// GiftedMembershipInfo carries the number of memberships gifted.
type GiftedMembershipInfo struct {
	Count int `json:"count"`
}

// Body is the tagged-variant payload of a message. Text is shared by all
// variants; at most one of the variant pointers is non-nil, and Kind names
// which one. The normalizer rejects records that claim several variants.
type Body struct {
	Kind             BodyKind              `json:"kind"`
	Text             string                `json:"text"`
	Emojis           []Emoji               `json:"emojis,omitempty"`
	Membership       *MembershipInfo       `json:"membership,omitempty"`
	SuperChat        *SuperChatInfo        `json:"superChat,omitempty"`
	PaidSticker      *PaidStickerInfo      `json:"paidSticker,omitempty"`
	GiftedMembership *GiftedMembershipInfo `json:"giftedMembership,omitempty"`
}

// Message is one normalized chat message. Immutable value: once built by the
// normalizer it is never mutated, so batches can be shared across subscribers.
//
// Timestamp is the stream-native display string (for example "1:23:45 PM"),
// not an absolute time - the chat pane renders relative wall-clock labels and
// we pass them through untouched.
type Message struct {
	Author           Author `json:"author"`
	Body             Body   `json:"body"`
	Timestamp        string `json:"timestamp"`
	LeaderboardLabel string `json:"leaderboard,omitempty"`
}
