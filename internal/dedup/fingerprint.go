package dedup

import (
	"fmt"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/domain"
)

// Fingerprint derives the content dedup key for a normalized message:
// (timestamp, author, text). Two distinct real messages can collide when a
// user spams the same phrase within one displayed timestamp - a known
// approximation inherited from the extraction layer. Sources that assign
// stable element ids get a second, id-based dedup layer in front of this one
// (see session ingest), because the id space is independent of content.
func Fingerprint(msg domain.Message) string {
	return fmt.Sprintf("%s-%s-%s", msg.Timestamp, msg.Author.Name, msg.Body.Text)
}
