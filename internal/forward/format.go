package forward

import (
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/memohai/tglistener/internal/platform"
	"github.com/memohai/tglistener/internal/prune"
)

const timestampLayout = "2006-01-02 15:04:05"

// Budgets for the forwarded message text. Telegram caps messages at 4096 and
// captions at 1024 units; the rest is left for the header lines.
const (
	MessageTextLimit = 3500
	CaptionTextLimit = 800
)

// displayZone is the fixed offset forwarded timestamps are rendered in.
var displayZone = time.FixedZone("UTC+3", 3*60*60)

// FormatText renders the HTML body posted to the group chat. Names, usernames
// and message text are HTML-escaped; long text is shortened to fit a message
// or, with media attached, a caption.
func FormatText(env Envelope) string {
	var b strings.Builder

	b.WriteString("👤 <b>User</b> [")
	b.WriteString(strconv.FormatInt(env.APIID, 10))
	b.WriteString("] - <b>")
	b.WriteString(html.EscapeString(env.From.FullName()))
	b.WriteString("</b>")
	writeUsername(&b, env.From.Username)

	b.WriteString("\n↪️ <b>To ")
	b.WriteString(RoleHint(env.To))
	b.WriteString(":</b> <b>")
	b.WriteString(html.EscapeString(recipientName(env.To)))
	b.WriteString("</b>")
	writeUsername(&b, env.To.Username)

	if text := strings.TrimSpace(env.Text); text != "" {
		limit := MessageTextLimit
		if env.Media != nil {
			limit = CaptionTextLimit
		}
		b.WriteString("\n📃<b>Text:</b> ")
		b.WriteString(html.EscapeString(prune.Text(text, limit, "")))
	}

	b.WriteString("\n🕑 Timestamp (<b>UTC+3</b>): ")
	b.WriteString(env.SentAt.In(displayZone).Format(timestampLayout))
	return b.String()
}

// RoleHint labels the recipient: "[Group/Channel]" when it has a title, then
// "[Bot]" or "[User]" by username suffix. Both parts can appear.
func RoleHint(to platform.Entity) string {
	var hint string
	if to.Title != "" {
		hint += "[Group/Channel]"
	}
	if to.Username != "" {
		if isBotUsername(to.Username) {
			hint += "[Bot]"
		} else {
			hint += "[User]"
		}
	}
	return hint
}

func isBotUsername(username string) bool {
	if len(username) < 3 {
		return strings.ToLower(username) == "bot"
	}
	return strings.ToLower(username[len(username)-3:]) == "bot"
}

func recipientName(to platform.Entity) string {
	if to.Title != "" {
		return to.Title
	}
	return to.FullName()
}

func writeUsername(b *strings.Builder, username string) {
	if username == "" {
		return
	}
	b.WriteString(" (")
	b.WriteString(html.EscapeString(username))
	b.WriteString(")")
}
