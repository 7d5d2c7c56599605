// Package scraper attaches a headless browser to a YouTube live chat page
// and turns its DOM into raw chat records. Two source flavours exist: a
// polling source that re-extracts the full chat pane on every Poll call, and
// an observing source that installs a MutationObserver in the page and
// pushes only newly appeared messages.
//
// Everything the browser hands back is untrusted and goes through the
// normalizer before it reaches a subscriber.
package scraper
