package relay

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/tweetrelay/internal/common"
	"github.com/dmitrijs2005/tweetrelay/internal/dbx"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/accounts"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/errorlog"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/ledger"
	"github.com/dmitrijs2005/tweetrelay/internal/repositories/metadata"
)

// -------- test fakes --------

type memAccounts struct {
	accounts.Repository
	list      []*models.MonitoredAccount
	listErrs  []error
	listCalls int
	cursorErr error
	cursors   map[int64][]string
}

func newMemAccounts(list ...*models.MonitoredAccount) *memAccounts {
	return &memAccounts{list: list, cursors: map[int64][]string{}}
}

func (m *memAccounts) ListActive(ctx context.Context) ([]*models.MonitoredAccount, error) {
	i := m.listCalls
	m.listCalls++
	if i < len(m.listErrs) && m.listErrs[i] != nil {
		return nil, m.listErrs[i]
	}
	var out []*models.MonitoredAccount
	for _, a := range m.list {
		if a.Active {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

func (m *memAccounts) SetCursor(ctx context.Context, id int64, postID string) error {
	if m.cursorErr != nil {
		return m.cursorErr
	}
	m.cursors[id] = append(m.cursors[id], postID)
	return nil
}

type memLedger struct {
	ledger.Repository
	recs      map[string]*models.PublicationRecord
	order     []string
	existsErr error
	insertErr error

	old          []*models.PublicationRecord
	listErr      error
	pruned       int64
	pruneErr     error
	pruneDays    []int
	listCutoffs  []time.Time
	pruneCutoffs []time.Time
}

func newMemLedger(published ...string) *memLedger {
	l := &memLedger{recs: map[string]*models.PublicationRecord{}}
	for _, id := range published {
		l.recs[id] = &models.PublicationRecord{PostID: id}
	}
	return l
}

func (l *memLedger) Exists(ctx context.Context, postID string) (bool, error) {
	if l.existsErr != nil {
		return false, l.existsErr
	}
	_, ok := l.recs[postID]
	return ok, nil
}

func (l *memLedger) Insert(ctx context.Context, rec *models.PublicationRecord) error {
	if l.insertErr != nil {
		return l.insertErr
	}
	if _, ok := l.recs[rec.PostID]; ok {
		return nil
	}
	l.recs[rec.PostID] = rec
	l.order = append(l.order, rec.PostID)
	return nil
}

func (l *memLedger) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.PublicationRecord, error) {
	l.listCutoffs = append(l.listCutoffs, cutoff)
	return l.old, l.listErr
}

func (l *memLedger) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	l.pruneCutoffs = append(l.pruneCutoffs, cutoff)
	return l.pruned, l.pruneErr
}

func (l *memLedger) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	l.pruneDays = append(l.pruneDays, days)
	return l.pruned, l.pruneErr
}

type memErrors struct {
	errorlog.Repository
	records   []models.ErrorRecord
	appendErr error
	pruned    int64
	pruneErr  error
	pruneDays []int
}

func (e *memErrors) Append(ctx context.Context, category, message string, details map[string]any) error {
	if e.appendErr != nil {
		return e.appendErr
	}
	e.records = append(e.records, models.ErrorRecord{Category: category, Message: message, Context: details})
	return nil
}

func (e *memErrors) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	e.pruneDays = append(e.pruneDays, days)
	return e.pruned, e.pruneErr
}

func (e *memErrors) byCategory(category string) []models.ErrorRecord {
	var out []models.ErrorRecord
	for _, r := range e.records {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}

type memMeta struct {
	metadata.Repository
	values map[string]string
	getErr error
	setErr error
}

func newMemMeta() *memMeta { return &memMeta{values: map[string]string{}} }

func (m *memMeta) Get(ctx context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", common.ErrorNotFound
	}
	return v, nil
}

func (m *memMeta) Set(ctx context.Context, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

// memRepos hands out the same fakes whatever handle they are bound to and
// remembers the handles.
type memRepos struct {
	ledger *memLedger
	errors *memErrors
	meta   *memMeta
	bound  []dbx.DBTX
}

func (r *memRepos) Ledger(db dbx.DBTX) ledger.Repository {
	r.bound = append(r.bound, db)
	return r.ledger
}

func (r *memRepos) ErrorLog(db dbx.DBTX) errorlog.Repository {
	r.bound = append(r.bound, db)
	return r.errors
}

func (r *memRepos) Metadata(db dbx.DBTX) metadata.Repository {
	r.bound = append(r.bound, db)
	return r.meta
}

type fetchCall struct {
	handle string
	since  string
	limit  int
}

// scriptedSource returns the configured newest-first backlog per handle.
type scriptedSource struct {
	posts map[string][]models.Post
	errs  map[string]error
	calls []fetchCall
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{posts: map[string][]models.Post{}, errs: map[string]error{}}
}

func (s *scriptedSource) Fetch(ctx context.Context, handle, since string, limit int) ([]models.Post, error) {
	s.calls = append(s.calls, fetchCall{handle, since, limit})
	if err := s.errs[handle]; err != nil {
		return nil, err
	}
	return s.posts[handle], nil
}

type recordingSink struct {
	published []string
	channels  []string
	failOn    map[string]error
	nextID    int64
}

func newRecordingSink() *recordingSink {
	return &recordingSink{failOn: map[string]error{}, nextID: 500}
}

func (s *recordingSink) Publish(ctx context.Context, post *models.Post, channel string) (int64, error) {
	s.published = append(s.published, post.ID)
	s.channels = append(s.channels, channel)
	if err := s.failOn[post.ID]; err != nil {
		return 0, err
	}
	s.nextID++
	return s.nextID, nil
}

type threadRecordingSink struct {
	*recordingSink
	threads [][]string
}

func (s *threadRecordingSink) PublishThread(ctx context.Context, posts []models.Post, channel string) (int64, error) {
	var ids []string
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	s.threads = append(s.threads, ids)
	if err := s.failOn[posts[0].ID]; err != nil {
		return 0, err
	}
	s.nextID++
	return s.nextID, nil
}

type recordingSleep struct {
	waits []time.Duration
	hook  func(n int) error
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	if r.hook != nil {
		return r.hook(len(r.waits))
	}
	return ctx.Err()
}

type recordingObserver struct {
	nopObserver
	cycles      []CycleReport
	cycleErrs   []error
	published   map[string]int
	duplicates  int
	failures    []string
	maintenance []error
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{published: map[string]int{}}
}

func (o *recordingObserver) CycleFinished(r CycleReport, err error) {
	o.cycles = append(o.cycles, r)
	o.cycleErrs = append(o.cycleErrs, err)
}

func (o *recordingObserver) PostsPublished(handle string, n int) { o.published[handle] += n }
func (o *recordingObserver) DuplicateSkipped(string)             { o.duplicates++ }
func (o *recordingObserver) AccountFailed(handle, reason string) {
	o.failures = append(o.failures, handle+":"+reason)
}
func (o *recordingObserver) MaintenanceFinished(_ MaintenanceReport, err error) {
	o.maintenance = append(o.maintenance, err)
}

func post(id string) models.Post {
	return models.Post{ID: id, Author: "alice", Text: "post " + id, URL: "https://twitter.com/alice/status/" + id}
}

// newestFirst builds an adapter batch from ids given newest first.
func newestFirst(ids ...string) []models.Post {
	out := make([]models.Post, 0, len(ids))
	for _, id := range ids {
		out = append(out, post(id))
	}
	return out
}

func account(id int64, handle string) *models.MonitoredAccount {
	return &models.MonitoredAccount{ID: id, Handle: handle, Channel: "@" + handle + "_feed", Active: true}
}
