package twitterapi

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/models"
	"github.com/dmitrijs2005/tweetrelay/internal/source"
)

const createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

type timelineResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Msg     string `json:"msg"`
	Data    *struct {
		Tweets []tweet `json:"tweets"`
	} `json:"data"`
	// older API versions return tweets at the top level
	Tweets []tweet `json:"tweets"`
}

type tweet struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Text          string `json:"text"`
	CreatedAt     string `json:"createdAt"`
	LikeCount     int    `json:"likeCount"`
	RetweetCount  int    `json:"retweetCount"`
	ReplyCount    int    `json:"replyCount"`
	IsReply       bool   `json:"isReply"`
	InReplyToID   string `json:"inReplyToId"`
	InReplyToUser string `json:"inReplyToUsername"`
	Author        struct {
		UserName string `json:"userName"`
		Name     string `json:"name"`
	} `json:"author"`
	ExtendedEntities struct {
		Media []mediaEntity `json:"media"`
	} `json:"extendedEntities"`
	QuotedTweet    *tweet `json:"quoted_tweet"`
	RetweetedTweet *tweet `json:"retweeted_tweet"`
}

type mediaEntity struct {
	Type          string `json:"type"`
	MediaURLHTTPS string `json:"media_url_https"`
	VideoInfo     struct {
		Variants []struct {
			Bitrate     int    `json:"bitrate"`
			ContentType string `json:"content_type"`
			URL         string `json:"url"`
		} `json:"variants"`
	} `json:"video_info"`
}

func (t tweet) toPost(handle string) models.Post {
	author := t.Author.UserName
	if author == "" {
		author = handle
	}
	name := t.Author.Name
	if name == "" {
		name = author
	}
	link := t.URL
	if link == "" {
		link = source.StatusURL(author, t.ID)
	}

	created, err := time.Parse(createdAtLayout, t.CreatedAt)
	if err != nil {
		created, _ = time.Parse(time.RFC3339, t.CreatedAt)
	}

	p := models.Post{
		ID:         t.ID,
		CreatedAt:  created.UTC(),
		Author:     author,
		AuthorName: name,
		Text:       t.Text,
		URL:        link,
		Likes:      t.LikeCount,
		Reposts:    t.RetweetCount,
		Replies:    t.ReplyCount,
		IsRepost:   t.RetweetedTweet != nil || strings.HasPrefix(t.Text, "RT @"),
		IsQuote:    t.QuotedTweet != nil,
	}
	if t.IsReply {
		p.InReplyTo = t.InReplyToID
	}
	for _, m := range t.ExtendedEntities.Media {
		if media, ok := m.toMedia(); ok {
			p.Media = append(p.Media, media)
		}
	}
	return p
}

func (m mediaEntity) toMedia() (models.Media, bool) {
	switch m.Type {
	case "photo":
		if m.MediaURLHTTPS == "" {
			return models.Media{}, false
		}
		return models.Media{Kind: models.MediaPhoto, URL: m.MediaURLHTTPS}, true
	case "video", "animated_gif":
		best, bitrate := "", -1
		for _, v := range m.VideoInfo.Variants {
			if v.ContentType != "" && v.ContentType != "video/mp4" {
				continue
			}
			if v.Bitrate > bitrate {
				best, bitrate = v.URL, v.Bitrate
			}
		}
		if best == "" {
			return models.Media{}, false
		}
		kind := models.MediaVideo
		if m.Type == "animated_gif" {
			kind = models.MediaAnimation
		}
		return models.Media{Kind: kind, URL: best}, true
	}
	return models.Media{}, false
}
