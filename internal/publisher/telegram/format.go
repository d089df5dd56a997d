package telegram

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/tweetrelay/internal/models"
)

const (
	// CaptionLimit is Telegram's maximum media caption length.
	CaptionLimit = 1024
	// TextLimit is Telegram's maximum message length.
	TextLimit = 4096

	dateLayout = "02/01/2006 15:04"
	ellipsis   = "..."
)

var entityRe = regexp.MustCompile(`([@#])([\p{L}\p{N}_]+)`)

// escape quotes the three characters Telegram's HTML parse mode reserves.
func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

// linkify escapes s and turns @mentions and #hashtags into links.
func linkify(s string) string {
	return entityRe.ReplaceAllStringFunc(escape(s), func(m string) string {
		sub := entityRe.FindStringSubmatch(m)
		if sub[1] == "@" {
			return fmt.Sprintf(`<a href="https://twitter.com/%s">@%s</a>`, sub[2], sub[2])
		}
		return fmt.Sprintf(`<a href="https://twitter.com/hashtag/%s">#%s</a>`, sub[2], sub[2])
	})
}

// fitText renders s with linkify, cutting the source text until the rendered
// form is at most budget runes long.
func fitText(s string, budget int) string {
	if budget <= 0 {
		return ""
	}
	out := linkify(s)
	if utf8.RuneCountInString(out) <= budget {
		return out
	}
	src := []rune(s)
	n := len(src)
	for n > 0 {
		over := utf8.RuneCountInString(out) - budget
		if over <= 0 {
			return out
		}
		n -= over
		if n < 0 {
			n = 0
		}
		out = linkify(strings.TrimRightFunc(string(src[:n]), isSpace)) + ellipsis
	}
	if utf8.RuneCountInString(ellipsis) <= budget {
		return ellipsis
	}
	return ""
}

func isSpace(r rune) bool { return r == ' ' || r == '\n' || r == '\t' }

func header(p *models.Post) string {
	name := p.AuthorName
	if name == "" {
		name = p.Author
	}
	return fmt.Sprintf("🐦 <b>%s</b> (@%s)\n\n", escape(name), escape(p.Author))
}

func stats(p *models.Post) string {
	if !p.HasStats() {
		return ""
	}
	var parts []string
	if p.Likes > 0 {
		parts = append(parts, "❤️ "+strconv.Itoa(p.Likes))
	}
	if p.Reposts > 0 {
		parts = append(parts, "🔄 "+strconv.Itoa(p.Reposts))
	}
	if p.Replies > 0 {
		parts = append(parts, "💬 "+strconv.Itoa(p.Replies))
	}
	return "\n\n" + strings.Join(parts, " • ")
}

func footer(p *models.Post, label string) string {
	var b strings.Builder
	if !p.CreatedAt.IsZero() {
		b.WriteString("\n\n📅 ")
		b.WriteString(p.CreatedAt.UTC().Format(dateLayout))
	}
	if p.URL != "" {
		if b.Len() == 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\n🔗 <a href=\"%s\">%s</a>", html.EscapeString(p.URL), label)
	}
	return b.String()
}

// FormatPost renders p as an HTML message of at most limit runes. Only the
// post text is shortened; header and footer are always kept whole.
func FormatPost(p *models.Post, limit int) string {
	head := header(p)
	tail := stats(p) + footer(p, "Tweet original")
	budget := limit - utf8.RuneCountInString(head) - utf8.RuneCountInString(tail)
	return head + fitText(p.Text, budget) + tail
}

// FormatThread renders a self-reply chain as one numbered message. Date and
// link come from the first post.
func FormatThread(posts []models.Post, limit int) string {
	if len(posts) == 0 {
		return ""
	}
	first := &posts[0]
	head := "🧵 <b>Thread</b>\n\n" + header(first)
	tail := footer(first, "Thread original")
	budget := limit - utf8.RuneCountInString(head) - utf8.RuneCountInString(tail)

	var b strings.Builder
	used := 0
	for i := range posts {
		prefix := fmt.Sprintf("%d. ", i+1)
		sep := ""
		if i > 0 {
			sep = "\n\n"
		}
		rest := budget - used - utf8.RuneCountInString(sep+prefix)
		if rest <= 0 {
			break
		}
		item := fitText(posts[i].Text, rest)
		b.WriteString(sep + prefix + item)
		used += utf8.RuneCountInString(sep + prefix + item)
		if item != linkify(posts[i].Text) {
			break
		}
	}
	return head + b.String() + tail
}
