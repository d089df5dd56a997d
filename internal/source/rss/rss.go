// Package rss reads account timelines from RSS bridges such as RSSHub or the
// RSS endpoint of a Nitter instance.
package rss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dmitrijs2005/tweetrelay/internal/logging"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
	"github.com/dmitrijs2005/tweetrelay/internal/source"
	"github.com/mmcdole/gofeed"
)

// Placeholder is replaced by the account handle in URL templates.
const Placeholder = "{username}"

const userAgent = "Mozilla/5.0 (compatible; tweetrelay/1.0)"

// Adapter tries each feed URL template in order until one yields items.
type Adapter struct {
	templates []string
	client    *http.Client
	log       logging.Logger
	now       func() time.Time
}

func New(templates []string, client *http.Client, log logging.Logger) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Adapter{
		templates: templates,
		client:    client,
		log:       log.With("module", "source.rss"),
		now:       time.Now,
	}
}

func (a *Adapter) Fetch(ctx context.Context, handle, since string, limit int) ([]models.Post, error) {
	if len(a.templates) == 0 {
		return nil, errors.New("rss: no feed URL templates configured")
	}

	var errs []error
	for _, tmpl := range a.templates {
		feedURL := strings.ReplaceAll(tmpl, Placeholder, url.PathEscape(handle))

		feed, err := a.parse(ctx, feedURL)
		if err != nil {
			a.log.Debug(ctx, "feed failed", "url", feedURL, "error", err)
			errs = append(errs, err)
			continue
		}
		if len(feed.Items) == 0 {
			continue
		}

		posts := make([]models.Post, 0, len(feed.Items))
		for _, item := range feed.Items {
			if p, ok := a.toPost(item, handle); ok {
				posts = append(posts, p)
			}
		}
		source.SortNewestFirst(posts)
		return source.Limit(source.TrimSince(posts, since), limit), nil
	}
	if len(errs) == len(a.templates) {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

func (a *Adapter) parse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	p := gofeed.NewParser()
	p.Client = a.client
	p.UserAgent = userAgent

	feed, err := p.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &source.StatusError{URL: feedURL, StatusCode: httpErr.StatusCode}
		}
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	return feed, nil
}

func (a *Adapter) toPost(item *gofeed.Item, handle string) (models.Post, bool) {
	id := source.StatusID(item.Link)
	if id == "" {
		id = source.StatusID(item.GUID)
	}
	if id == "" && item.GUID != "" {
		parts := strings.Split(strings.TrimRight(item.GUID, "/"), "/")
		id = parts[len(parts)-1]
	}
	if id == "" {
		return models.Post{}, false
	}

	body := item.Description
	if body == "" {
		body = item.Content
	}
	text, media := extractHTML(body)
	if text == "" {
		text = strings.TrimSpace(item.Title)
	}
	for _, enc := range item.Enclosures {
		if m, ok := enclosureMedia(enc); ok {
			media = appendUnique(media, m)
		}
	}

	created := a.now().UTC()
	if item.PublishedParsed != nil {
		created = item.PublishedParsed.UTC()
	}

	authorName := handle
	if item.Author != nil && item.Author.Name != "" {
		authorName = strings.TrimPrefix(item.Author.Name, "@")
	}

	link := item.Link
	if link == "" {
		link = source.StatusURL(handle, id)
	}

	return models.Post{
		ID:         id,
		CreatedAt:  created,
		Author:     handle,
		AuthorName: authorName,
		Text:       text,
		URL:        link,
		Media:      media,
		IsRepost:   strings.HasPrefix(text, "RT @") || strings.HasPrefix(item.Title, "RT "),
	}, true
}

// extractHTML returns the plain text of an item body and the media it embeds.
func extractHTML(body string) (string, []models.Media) {
	if strings.TrimSpace(body) == "" {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return strings.TrimSpace(body), nil
	}

	var media []models.Media
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			media = appendUnique(media, models.Media{Kind: models.MediaPhoto, URL: src})
		}
	})
	doc.Find("video").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" {
			src, _ = s.Find("source").Attr("src")
		}
		if src != "" {
			media = appendUnique(media, models.Media{Kind: models.MediaVideo, URL: src})
		}
	})

	doc.Find("br").ReplaceWithHtml("\n")
	return strings.TrimSpace(doc.Text()), media
}

func enclosureMedia(enc *gofeed.Enclosure) (models.Media, bool) {
	if enc == nil || enc.URL == "" {
		return models.Media{}, false
	}
	switch {
	case strings.HasPrefix(enc.Type, "image/gif"):
		return models.Media{Kind: models.MediaAnimation, URL: enc.URL}, true
	case strings.HasPrefix(enc.Type, "image/"):
		return models.Media{Kind: models.MediaPhoto, URL: enc.URL}, true
	case strings.HasPrefix(enc.Type, "video/"):
		return models.Media{Kind: models.MediaVideo, URL: enc.URL}, true
	}
	return models.Media{}, false
}

func appendUnique(list []models.Media, m models.Media) []models.Media {
	for _, x := range list {
		if x.URL == m.URL {
			return list
		}
	}
	return append(list, m)
}
