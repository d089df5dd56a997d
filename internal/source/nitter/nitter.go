// Package nitter scrapes account timelines from the HTML pages of public
// Nitter instances.
package nitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dmitrijs2005/tweetrelay/internal/logging"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
	"github.com/dmitrijs2005/tweetrelay/internal/source"
)

const (
	userAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	dateLayout = "Jan 2, 2006 · 3:04 PM MST"
	mediaHost  = "https://pbs.twimg.com/"
)

// ErrProfileUnavailable is returned when an instance reports that the
// profile does not exist or cannot be shown.
var ErrProfileUnavailable = errors.New("nitter: profile unavailable")

// Adapter rotates over instances; each Fetch starts at the next instance and
// tries the others when one fails.
type Adapter struct {
	instances []string
	client    *http.Client
	log       logging.Logger
	next      atomic.Uint32
	now       func() time.Time
}

func New(instances []string, client *http.Client, log logging.Logger) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	trimmed := make([]string, 0, len(instances))
	for _, in := range instances {
		if !strings.Contains(in, "://") {
			in = "https://" + in
		}
		trimmed = append(trimmed, strings.TrimRight(in, "/"))
	}
	return &Adapter{
		instances: trimmed,
		client:    client,
		log:       log.With("module", "source.nitter"),
		now:       time.Now,
	}
}

func (a *Adapter) Fetch(ctx context.Context, handle, since string, limit int) ([]models.Post, error) {
	n := len(a.instances)
	if n == 0 {
		return nil, errors.New("nitter: no instances configured")
	}

	start := int(a.next.Add(1)-1) % n
	var errs []error
	for i := 0; i < n; i++ {
		base := a.instances[(start+i)%n]
		posts, err := a.fetchFrom(ctx, base, handle)
		if err != nil {
			a.log.Debug(ctx, "instance failed", "instance", base, "handle", handle, "error", err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		source.SortNewestFirst(posts)
		return source.Limit(source.TrimSince(posts, since), limit), nil
	}
	return nil, errors.Join(errs...)
}

func (a *Adapter) fetchFrom(ctx context.Context, base, handle string) ([]models.Post, error) {
	pageURL := base + "/" + url.PathEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &source.StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	if doc.Find(".error-panel").Length() > 0 {
		return nil, fmt.Errorf("%s: %w", pageURL, ErrProfileUnavailable)
	}
	timeline := doc.Find(".timeline")
	if timeline.Length() == 0 {
		return nil, fmt.Errorf("%s: timeline not found", pageURL)
	}

	var posts []models.Post
	timeline.Find(".timeline-item").Each(func(_ int, item *goquery.Selection) {
		if p, ok := a.parseItem(item, base, handle); ok {
			posts = append(posts, p)
		}
	})
	return posts, nil
}

func (a *Adapter) parseItem(item *goquery.Selection, base, handle string) (models.Post, bool) {
	// pinned posts are old and would break the newest-first order
	if item.Find(".pinned").Length() > 0 {
		return models.Post{}, false
	}
	href, _ := item.Find("a.tweet-link").First().Attr("href")
	id := source.StatusID(href)
	if id == "" {
		return models.Post{}, false
	}

	author := strings.TrimPrefix(strings.TrimSpace(item.Find(".tweet-header a.username").First().Text()), "@")
	if author == "" {
		author = handle
	}
	name := strings.TrimSpace(item.Find(".tweet-header a.fullname").First().Text())
	if name == "" {
		name = author
	}

	content := item.Find(".tweet-content").First()
	content.Find("br").ReplaceWithHtml("\n")
	text := strings.TrimSpace(content.Text())

	created := a.now().UTC()
	if title, ok := item.Find(".tweet-date a").First().Attr("title"); ok {
		if t, err := time.Parse(dateLayout, title); err == nil {
			created = t.UTC()
		}
	}

	p := models.Post{
		ID:         id,
		CreatedAt:  created,
		Author:     author,
		AuthorName: name,
		Text:       text,
		URL:        source.StatusURL(author, id),
		Media:      parseMedia(item, base),
		IsRepost:   item.Find(".retweet-header").Length() > 0,
		IsQuote:    item.Find(".quote").Length() > 0,
	}
	item.Find(".tweet-stats .tweet-stat").Each(func(_ int, s *goquery.Selection) {
		n := parseCount(s.Text())
		switch {
		case s.Find(".icon-comment").Length() > 0:
			p.Replies = n
		case s.Find(".icon-retweet").Length() > 0:
			p.Reposts = n
		case s.Find(".icon-heart").Length() > 0:
			p.Likes = n
		}
	})
	return p, true
}

func parseMedia(item *goquery.Selection, base string) []models.Media {
	var media []models.Media
	// media of a quoted post belongs to the quote
	attachments := item.Find(".attachments").Not(".quote .attachments")

	attachments.Find(".still-image img, img.tweet-media").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			if u := picURL(src); u != "" {
				media = append(media, models.Media{Kind: models.MediaPhoto, URL: u})
			}
		}
	})
	attachments.Find("video").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Find("source").First().Attr("src")
		if src == "" {
			src, _ = s.Attr("data-url")
		}
		if src == "" {
			return
		}
		if strings.HasPrefix(src, "/") {
			src = base + src
		}
		kind := models.MediaVideo
		if s.HasClass("gif") {
			kind = models.MediaAnimation
		}
		media = append(media, models.Media{Kind: kind, URL: src})
	})
	return media
}

// picURL maps a Nitter image proxy path such as /pic/media%2FAbc.jpg%3Fname%3Dsmall
// to the original https://pbs.twimg.com/media/Abc.jpg.
func picURL(src string) string {
	i := strings.Index(src, "/pic/")
	if i < 0 {
		if strings.HasPrefix(src, "http") {
			return src
		}
		return ""
	}
	path := strings.TrimPrefix(src[i+len("/pic/"):], "orig/")
	unescaped, err := url.PathUnescape(path)
	if err != nil {
		return ""
	}
	if q := strings.IndexByte(unescaped, '?'); q >= 0 {
		unescaped = unescaped[:q]
	}
	return mediaHost + strings.TrimPrefix(unescaped, "/")
}

func parseCount(s string) int {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
