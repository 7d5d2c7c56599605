package domain

// RawRecord is the boundary shape handed over by the scraping collaborator.
// It mirrors what the in-page extraction script produces and is untrusted:
// every field may be missing or malformed until the normalizer has seen it.
type RawRecord struct {
	// ElementID is the DOM-assigned id of the rendered message node, when the
	// source provides one (change-notification mode). Empty in polling mode.
	ElementID   string    `json:"elementId,omitempty"`
	Author      RawAuthor `json:"author"`
	Body        RawBody   `json:"body"`
	Timestamp   string    `json:"timestamp"`
	Leaderboard string    `json:"leaderboard,omitempty"`
}

// RawAuthor is the unvalidated author part of a raw record.
type RawAuthor struct {
	Name     string  `json:"name"`
	PhotoURL string  `json:"photoUrl"`
	Badges   []Badge `json:"badges,omitempty"`
	// Type is the author-type attribute of the message node:
	// "owner", "moderator", "member" or "viewer".
	Type string `json:"type"`
}

// RawBody is the unvalidated body part of a raw record. Text is a pointer so
// the normalizer can tell "absent" apart from "empty string": an empty message
// body is valid, a missing text field is not.
type RawBody struct {
	Text   *string `json:"text"`
	Emojis []Emoji `json:"emojis,omitempty"`

	IsMembership     bool   `json:"isMembership,omitempty"`
	MembershipTier   string `json:"membershipTier,omitempty"`
	MembershipStatus string `json:"membershipStatus,omitempty"`

	IsSuperChat     bool   `json:"isSuperChat,omitempty"`
	SuperChatAmount string `json:"superChatAmount,omitempty"`
	SuperChatStyle  string `json:"superChatStyle,omitempty"`

	IsPaidSticker   bool   `json:"isPaidSticker,omitempty"`
	StickerAmount   string `json:"stickerAmount,omitempty"`
	StickerImageURL string `json:"stickerImageUrl,omitempty"`

	IsGiftedMembership bool `json:"isGiftedMembership,omitempty"`
	GiftCount          int  `json:"giftCount,omitempty"`
}
