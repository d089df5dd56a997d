// Package archive exports expiring ledger records to S3-compatible storage
// as newline-delimited JSON before they are pruned.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/tweetrelay/internal/logging"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
	"github.com/google/uuid"
)

var loadDefaultAWSConfig = config.LoadDefaultConfig

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Options struct {
	Bucket string
	Region string
	// Endpoint points at a non-AWS service such as MinIO; path-style
	// addressing is used when it is set.
	Endpoint  string
	AccessKey string
	SecretKey string
}

type S3Archiver struct {
	client putObjectAPI
	bucket string
	log    logging.Logger
	now    func() time.Time
}

// New builds an archiver. Without an access key the default AWS credential
// chain is used.
func New(ctx context.Context, opts Options, log logging.Logger) (*S3Archiver, error) {
	if opts.Bucket == "" {
		return nil, errors.New("archive: bucket is required")
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newArchiver(client, opts.Bucket, log), nil
}

func newArchiver(client putObjectAPI, bucket string, log logging.Logger) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, log: log.With("module", "archive"), now: time.Now}
}

type row struct {
	PostID      string          `json:"post_id"`
	AccountID   int64           `json:"account_id"`
	DeliveryID  int64           `json:"delivery_id"`
	Channel     string          `json:"channel"`
	PublishedAt time.Time       `json:"published_at"`
	Post        json.RawMessage `json:"post,omitempty"`
}

// ObjectKey names the object written at t.
func ObjectKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("publications/%04d/%02d/%02d/%s.ndjson", t.Year(), t.Month(), t.Day(), uuid.New())
}

// Archive uploads recs as one NDJSON object.
func (a *S3Archiver) Archive(ctx context.Context, recs []*models.PublicationRecord) error {
	if len(recs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range recs {
		out := row{
			PostID:      r.PostID,
			AccountID:   r.AccountID,
			DeliveryID:  r.DeliveryID,
			Channel:     r.Channel,
			PublishedAt: r.PublishedAt.UTC(),
		}
		if json.Valid(r.Payload) {
			out.Post = r.Payload
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("archive: encode %s: %w", r.PostID, err)
		}
	}

	key := ObjectKey(a.now())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: put %s: %w", key, err)
	}
	a.log.Info(ctx, "publications archived", "bucket", a.bucket, "key", key, "records", len(recs))
	return nil
}
