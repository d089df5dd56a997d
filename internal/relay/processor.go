package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/logging"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/accounts"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/ledger"
	"github.com/dmitrijs2005/tweetrelay/internal/source"
)

// Processor handles a single account: fetch, dedup, publish, record.
type Processor struct {
	source   source.Adapter
	sink     Sink
	accounts accounts.Repository
	ledger   ledger.Repository
	opts     Options
	log      logging.Logger
	observer Observer

	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
	encode func(v any) ([]byte, error)
}

func NewProcessor(src source.Adapter, sink Sink, accts accounts.Repository, led ledger.Repository, opts Options, log logging.Logger) *Processor {
	return &Processor{
		source:   src,
		sink:     sink,
		accounts: accts,
		ledger:   led,
		opts:     opts,
		log:      log.With("module", "processor"),
		observer: nopObserver{},
		sleep:    sleep,
		now:      time.Now,
		encode:   json.Marshal,
	}
}

// WithObserver sets the event observer.
func (p *Processor) WithObserver(o Observer) *Processor {
	p.observer = o
	return p
}

// ProcessAccount publishes the account's undelivered posts oldest first and
// returns how many were published. The cursor moves only past posts that were
// delivered and recorded.
//
// A *SourceFetchError or *PublishError leaves the account to the next cycle;
// a *LedgerWriteError means storage is failing and should abort the cycle.
func (p *Processor) ProcessAccount(ctx context.Context, acct *models.MonitoredAccount) (int, error) {
	log := p.log.With("handle", acct.Handle)

	batch, err := p.source.Fetch(ctx, acct.Handle, acct.Cursor, p.opts.BatchSize)
	if err != nil {
		return 0, &SourceFetchError{Handle: acct.Handle, Err: err}
	}
	if len(batch) == 0 {
		log.Debug(ctx, "no new posts")
		return 0, nil
	}

	published := 0
	defer func() {
		if published > 0 {
			p.observer.PostsPublished(acct.Handle, published)
		}
	}()

	var fresh []models.Post
	inBatch := make(map[string]bool, len(batch))
	for _, post := range source.Chronological(batch) {
		if inBatch[post.ID] {
			log.Debug(ctx, "skipping repeated post in batch", "post_id", post.ID)
			p.observer.DuplicateSkipped(acct.Handle)
			continue
		}
		inBatch[post.ID] = true

		done, err := p.ledger.Exists(ctx, post.ID)
		if err != nil {
			return 0, &LedgerWriteError{Op: "exists", PostID: post.ID, Err: err}
		}
		if done {
			log.Debug(ctx, "skipping already published post", "post_id", post.ID)
			p.observer.DuplicateSkipped(acct.Handle)
			continue
		}
		fresh = append(fresh, post)
	}

	units := p.group(fresh)
	for i, unit := range units {
		payloads, err := p.payloads(unit)
		if err != nil {
			return published, err
		}
		deliveryID, err := p.deliver(ctx, acct, unit)
		if err != nil {
			return published, &PublishError{Handle: acct.Handle, PostID: unit[0].ID, Err: err}
		}
		if err := p.record(ctx, acct, unit, payloads, deliveryID); err != nil {
			return published, err
		}
		published += len(unit)
		log.Info(ctx, "post published", "post_id", unit[len(unit)-1].ID, "posts", len(unit), "delivery_id", deliveryID)

		if i < len(units)-1 {
			_ = p.sleep(ctx, p.opts.PostDelay)
		}
	}
	return published, nil
}

// group splits chronological posts into delivery units: runs of self-replies
// become one unit when threads are enabled and the sink supports them,
// everything else is one post per unit.
func (p *Processor) group(posts []models.Post) [][]models.Post {
	_, threads := p.sink.(ThreadSink)
	threads = threads && p.opts.EnableThreads

	var units [][]models.Post
	for i := range posts {
		if threads && i > 0 && posts[i].Continues(&posts[i-1]) {
			last := len(units) - 1
			units[last] = append(units[last], posts[i])
			continue
		}
		units = append(units, []models.Post{posts[i]})
	}
	return units
}

func (p *Processor) deliver(ctx context.Context, acct *models.MonitoredAccount, unit []models.Post) (int64, error) {
	if len(unit) > 1 {
		return p.sink.(ThreadSink).PublishThread(ctx, unit, acct.Channel)
	}
	return p.sink.Publish(ctx, &unit[0], acct.Channel)
}

// payloads encodes the ledger snapshot of every post in unit. It runs before
// delivery so an unencodable post is never sent without being recorded.
func (p *Processor) payloads(unit []models.Post) ([][]byte, error) {
	out := make([][]byte, len(unit))
	for i := range unit {
		b, err := p.encode(&unit[i])
		if err != nil {
			return nil, &LedgerWriteError{Op: "encode", PostID: unit[i].ID, Err: err}
		}
		out[i] = b
	}
	return out, nil
}

// record writes the ledger entries of a delivered unit, then moves the cursor
// to its newest post.
func (p *Processor) record(ctx context.Context, acct *models.MonitoredAccount, unit []models.Post, payloads [][]byte, deliveryID int64) error {
	for i := range unit {
		rec := &models.PublicationRecord{
			PostID:      unit[i].ID,
			AccountID:   acct.ID,
			DeliveryID:  deliveryID,
			Channel:     acct.Channel,
			PublishedAt: p.now().UTC(),
			Payload:     payloads[i],
		}
		if err := p.ledger.Insert(ctx, rec); err != nil {
			return &LedgerWriteError{Op: "insert", PostID: rec.PostID, Err: err}
		}
	}

	last := unit[len(unit)-1].ID
	if err := p.accounts.SetCursor(ctx, acct.ID, last); err != nil {
		return &LedgerWriteError{Op: "set_cursor", PostID: last, Err: err}
	}
	acct.Cursor = last
	return nil
}
