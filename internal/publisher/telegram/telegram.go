// Package telegram publishes posts to Telegram channels through the Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/logging"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
	"github.com/dmitrijs2005/tweetrelay/internal/publisher"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MaxGroupSize is the largest album Telegram accepts.
const MaxGroupSize = 10

// botAPI is the part of *tgbotapi.BotAPI the sink uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMediaGroup(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
	GetMe() (tgbotapi.User, error)
}

type Options struct {
	// EnableMedia sends attachments as photos, videos and albums; when false
	// every post goes out as a text message.
	EnableMedia bool
	// Endpoint overrides tgbotapi.APIEndpoint.
	Endpoint string
	Client   *http.Client
}

type Sink struct {
	bot         botAPI
	enableMedia bool
	log         logging.Logger
}

// New creates a sink for the bot identified by token. No request is made
// until Ping or the first publish.
func New(token string, opts Options, log logging.Logger) (*Sink, error) {
	if token == "" {
		return nil, errors.New("telegram: empty bot token")
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot := &tgbotapi.BotAPI{Token: token, Client: client, Buffer: 100}
	bot.SetAPIEndpoint(endpoint)
	return newSink(bot, opts.EnableMedia, log), nil
}

func newSink(bot botAPI, enableMedia bool, log logging.Logger) *Sink {
	return &Sink{bot: bot, enableMedia: enableMedia, log: log.With("module", "telegram")}
}

// Ping checks the token with getMe and returns the bot's username.
func (s *Sink) Ping(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	me, err := s.bot.GetMe()
	if err != nil {
		return "", fmt.Errorf("telegram getMe: %w", classify(err))
	}
	return me.UserName, nil
}

// Publish sends one post and returns the id of the (first) message created.
func (s *Sink) Publish(ctx context.Context, post *models.Post, channel string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	target, err := parseChat(channel)
	if err != nil {
		return 0, err
	}

	if s.enableMedia && len(post.Media) > 0 {
		id, err := s.sendMedia(target, post)
		if err == nil {
			return id, nil
		}
		var rl *publisher.RateLimitError
		if errors.As(err, &rl) {
			return 0, err
		}
		s.log.Warn(ctx, "media send failed, falling back to text", "post_id", post.ID, "error", err)
	}
	return s.sendText(target, FormatPost(post, TextLimit))
}

// PublishThread sends a self-reply chain as one text message.
func (s *Sink) PublishThread(ctx context.Context, posts []models.Post, channel string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(posts) == 0 {
		return 0, errors.New("telegram: empty thread")
	}
	target, err := parseChat(channel)
	if err != nil {
		return 0, err
	}
	return s.sendText(target, FormatThread(posts, TextLimit))
}

func (s *Sink) sendText(target chat, text string) (int64, error) {
	msg := tgbotapi.NewMessage(0, text)
	target.apply(&msg.BaseChat)
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := s.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("telegram sendMessage: %w", classify(err))
	}
	return int64(sent.MessageID), nil
}

func (s *Sink) sendMedia(target chat, post *models.Post) (int64, error) {
	caption := FormatPost(post, CaptionLimit)
	if len(post.Media) == 1 {
		return s.sendSingle(target, post.Media[0], caption)
	}

	media := post.Media
	if len(media) > MaxGroupSize {
		media = media[:MaxGroupSize]
	}
	items := make([]interface{}, 0, len(media))
	for i, m := range media {
		c := ""
		if i == 0 {
			c = caption
		}
		items = append(items, inputMedia(m, c))
	}
	group := tgbotapi.NewMediaGroup(target.id, items)
	group.ChannelUsername = target.username
	sent, err := s.bot.SendMediaGroup(group)
	if err != nil {
		return 0, fmt.Errorf("telegram sendMediaGroup: %w", classify(err))
	}
	if len(sent) == 0 {
		return 0, errors.New("telegram sendMediaGroup: no messages returned")
	}
	return int64(sent[0].MessageID), nil
}

func (s *Sink) sendSingle(target chat, m models.Media, caption string) (int64, error) {
	file := tgbotapi.FileURL(m.URL)
	var c tgbotapi.Chattable
	switch m.Kind {
	case models.MediaVideo:
		v := tgbotapi.NewVideo(0, file)
		target.apply(&v.BaseChat)
		v.Caption, v.ParseMode = caption, tgbotapi.ModeHTML
		c = v
	case models.MediaAnimation:
		a := tgbotapi.NewAnimation(0, file)
		target.apply(&a.BaseChat)
		a.Caption, a.ParseMode = caption, tgbotapi.ModeHTML
		c = a
	default:
		p := tgbotapi.NewPhoto(0, file)
		target.apply(&p.BaseChat)
		p.Caption, p.ParseMode = caption, tgbotapi.ModeHTML
		c = p
	}
	sent, err := s.bot.Send(c)
	if err != nil {
		return 0, fmt.Errorf("telegram send %s: %w", m.Kind, classify(err))
	}
	return int64(sent.MessageID), nil
}

// inputMedia builds an album item. Albums cannot hold animations, so those
// are sent as videos.
func inputMedia(m models.Media, caption string) interface{} {
	file := tgbotapi.FileURL(m.URL)
	switch m.Kind {
	case models.MediaVideo, models.MediaAnimation:
		v := tgbotapi.NewInputMediaVideo(file)
		if caption != "" {
			v.Caption, v.ParseMode = caption, tgbotapi.ModeHTML
		}
		return v
	default:
		p := tgbotapi.NewInputMediaPhoto(file)
		if caption != "" {
			p.Caption, p.ParseMode = caption, tgbotapi.ModeHTML
		}
		return p
	}
}

// chat is a destination: a numeric chat id or a public @username.
type chat struct {
	id       int64
	username string
}

func parseChat(channel string) (chat, error) {
	channel = strings.TrimSpace(channel)
	if strings.HasPrefix(channel, "@") && len(channel) > 1 {
		return chat{username: channel}, nil
	}
	id, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return chat{}, fmt.Errorf("telegram: invalid channel %q", channel)
	}
	return chat{id: id}, nil
}

func (c chat) apply(b *tgbotapi.BaseChat) {
	b.ChatID = c.id
	b.ChannelUsername = c.username
}

// classify turns a Bot API "too many requests" answer into a RateLimitError.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && (apiErr.RetryAfter > 0 || apiErr.Code == http.StatusTooManyRequests) {
		return &publisher.RateLimitError{
			RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second,
			Err:        err,
		}
	}
	return err
}
