package scraper

import (
	"regexp"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/domain"
)

// offlineNoticeRE matches the notice YouTube renders in place of the chat
// feed once a stream has ended or chat is not available for it.
var offlineNoticeRE = regexp.MustCompile(`(?i)chat (is disabled|turned off|unavailable|ended)`)

// isOfflineNotice reports whether the given in-page notice text marks the
// stream's chat as permanently gone.
func isOfflineNotice(text string) bool {
	return text != "" && offlineNoticeRE.MatchString(text)
}

// pageSnapshot is the shape produced by extractScript inside the page.
// Records deserialize straight into domain.RawRecord.
type pageSnapshot struct {
	NoticeText string             `json:"noticeText"`
	Records    []domain.RawRecord `json:"records"`
}

// extractScript runs inside the live chat frame and serializes every
// currently rendered message into the raw record shape. It also reports the
// text of any notice shown instead of (or above) the feed, which the Go
// side checks against offlineNoticeRE.
const extractScript = `
(() => {
  const text = (el) => el ? el.textContent.trim() : "";
  const attr = (el, name) => el ? (el.getAttribute(name) || "") : "";

  const bodyText = (el) => {
    if (!el) return null;
    let out = "";
    for (const node of el.childNodes) {
      if (node.nodeType === Node.TEXT_NODE) {
        out += node.textContent;
      } else if (node.nodeType === Node.ELEMENT_NODE) {
        if (node.matches && node.matches("img.emoji")) {
          out += node.getAttribute("shared-tooltip-text") || node.alt || "";
        } else {
          out += node.textContent;
        }
      }
    }
    return out;
  };

  const emojis = (el) => {
    if (!el) return [];
    return [...el.querySelectorAll("img.emoji")].map((e) => ({
      text: e.getAttribute("shared-tooltip-text") || e.alt || "",
      imageUrl: e.src || "",
    }));
  };

  const badges = (node) => {
    return [...node.querySelectorAll("yt-live-chat-author-badge-renderer")].map((b) => ({
      type: b.getAttribute("type") || "",
      text: b.getAttribute("aria-label") || "",
      imageUrl: attr(b.querySelector("img"), "src"),
    }));
  };

  const extractOne = (node) => {
    const tag = node.tagName.toLowerCase();
    const record = {
      elementId: node.id || "",
      timestamp: text(node.querySelector("#timestamp")),
      leaderboard: text(node.querySelector("#before-content-buttons button")),
      author: {
        name: text(node.querySelector("#author-name")),
        photoUrl: attr(node.querySelector("#author-photo img"), "src"),
        type: node.getAttribute("author-type") || "viewer",
        badges: badges(node),
      },
      body: {},
    };

    const message = node.querySelector("#message");
    if (message) {
      record.body.text = bodyText(message);
      record.body.emojis = emojis(message);
    }

    switch (tag) {
      case "yt-live-chat-membership-item-renderer": {
        record.body.isMembership = true;
        record.body.membershipTier = text(node.querySelector("#header-subtext"));
        record.body.membershipStatus = text(node.querySelector("#header-primary-text"));
        if (record.body.text == null) record.body.text = "";
        break;
      }
      case "yt-live-chat-paid-message-renderer": {
        record.body.isSuperChat = true;
        record.body.superChatAmount = text(node.querySelector("#purchase-amount"));
        record.body.superChatStyle = attr(node, "style") || node.getAttribute("show-only-header") || "";
        if (record.body.text == null) record.body.text = "";
        break;
      }
      case "yt-live-chat-paid-sticker-renderer": {
        record.body.isPaidSticker = true;
        record.body.stickerAmount = text(node.querySelector("#purchase-amount-chip"));
        record.body.stickerImageUrl = attr(node.querySelector("#sticker img"), "src");
        record.body.text = "";
        break;
      }
      case "ytd-sponsorships-live-chat-gift-purchase-announcement-renderer": {
        record.body.isGiftedMembership = true;
        const header = text(node.querySelector("#primary-text"));
        const match = header.match(/gifted\s+(\d+)/i);
        record.body.giftCount = match ? parseInt(match[1], 10) : 1;
        record.body.text = header;
        break;
      }
    }

    return record;
  };

  const selector = [
    "yt-live-chat-text-message-renderer",
    "yt-live-chat-membership-item-renderer",
    "yt-live-chat-paid-message-renderer",
    "yt-live-chat-paid-sticker-renderer",
    "ytd-sponsorships-live-chat-gift-purchase-announcement-renderer",
  ].join(", ");

  const records = [...document.querySelectorAll(selector)].map(extractOne);

  let noticeText = "";
  const notice = document.querySelector(
    "yt-live-chat-message-renderer #message, #error-message, yt-formatted-string#text.style-scope.yt-live-chat-message-renderer"
  );
  if (notice) noticeText = notice.textContent.trim();

  return { noticeText: noticeText, records: records };
})()
`

// observeScript installs a MutationObserver on the chat item list and
// forwards each newly attached message node through the bound callback as a
// JSON-encoded array of raw records. It reuses the same per-node extraction
// as extractScript and additionally watches for the offline notice.
const observeScript = `
(() => {
  const text = (el) => el ? el.textContent.trim() : "";
  const attr = (el, name) => el ? (el.getAttribute(name) || "") : "";

  const bodyText = (el) => {
    if (!el) return null;
    let out = "";
    for (const node of el.childNodes) {
      if (node.nodeType === Node.TEXT_NODE) {
        out += node.textContent;
      } else if (node.nodeType === Node.ELEMENT_NODE) {
        if (node.matches && node.matches("img.emoji")) {
          out += node.getAttribute("shared-tooltip-text") || node.alt || "";
        } else {
          out += node.textContent;
        }
      }
    }
    return out;
  };

  const emojis = (el) => {
    if (!el) return [];
    return [...el.querySelectorAll("img.emoji")].map((e) => ({
      text: e.getAttribute("shared-tooltip-text") || e.alt || "",
      imageUrl: e.src || "",
    }));
  };

  const badges = (node) => {
    return [...node.querySelectorAll("yt-live-chat-author-badge-renderer")].map((b) => ({
      type: b.getAttribute("type") || "",
      text: b.getAttribute("aria-label") || "",
      imageUrl: attr(b.querySelector("img"), "src"),
    }));
  };

  const messageTags = new Set([
    "yt-live-chat-text-message-renderer",
    "yt-live-chat-membership-item-renderer",
    "yt-live-chat-paid-message-renderer",
    "yt-live-chat-paid-sticker-renderer",
    "ytd-sponsorships-live-chat-gift-purchase-announcement-renderer",
  ]);

  const extractOne = (node) => {
    const tag = node.tagName.toLowerCase();
    const record = {
      elementId: node.id || "",
      timestamp: text(node.querySelector("#timestamp")),
      leaderboard: text(node.querySelector("#before-content-buttons button")),
      author: {
        name: text(node.querySelector("#author-name")),
        photoUrl: attr(node.querySelector("#author-photo img"), "src"),
        type: node.getAttribute("author-type") || "viewer",
        badges: badges(node),
      },
      body: {},
    };

    const message = node.querySelector("#message");
    if (message) {
      record.body.text = bodyText(message);
      record.body.emojis = emojis(message);
    }

    switch (tag) {
      case "yt-live-chat-membership-item-renderer": {
        record.body.isMembership = true;
        record.body.membershipTier = text(node.querySelector("#header-subtext"));
        record.body.membershipStatus = text(node.querySelector("#header-primary-text"));
        if (record.body.text == null) record.body.text = "";
        break;
      }
      case "yt-live-chat-paid-message-renderer": {
        record.body.isSuperChat = true;
        record.body.superChatAmount = text(node.querySelector("#purchase-amount"));
        record.body.superChatStyle = attr(node, "style") || "";
        if (record.body.text == null) record.body.text = "";
        break;
      }
      case "yt-live-chat-paid-sticker-renderer": {
        record.body.isPaidSticker = true;
        record.body.stickerAmount = text(node.querySelector("#purchase-amount-chip"));
        record.body.stickerImageUrl = attr(node.querySelector("#sticker img"), "src");
        record.body.text = "";
        break;
      }
      case "ytd-sponsorships-live-chat-gift-purchase-announcement-renderer": {
        record.body.isGiftedMembership = true;
        const header = text(node.querySelector("#primary-text"));
        const match = header.match(/gifted\s+(\d+)/i);
        record.body.giftCount = match ? parseInt(match[1], 10) : 1;
        record.body.text = header;
        break;
      }
    }

    return record;
  };

  const target = document.querySelector("#items.yt-live-chat-item-list-renderer") ||
    document.querySelector("#chat #items") ||
    document.body;

  const observer = new MutationObserver((mutations) => {
    const batch = [];
    for (const mutation of mutations) {
      for (const node of mutation.addedNodes) {
        if (node.nodeType !== Node.ELEMENT_NODE) continue;
        const tag = node.tagName.toLowerCase();
        if (messageTags.has(tag)) {
          batch.push(extractOne(node));
        } else if (tag === "yt-live-chat-message-renderer") {
          const notice = text(node.querySelector("#message"));
          if (notice) window.__chatOffline(notice);
        }
      }
    }
    if (batch.length > 0) {
      window.__chatRecords(JSON.stringify(batch));
    }
  });

  observer.observe(target, { childList: true, subtree: true });
  return true;
})()
`
