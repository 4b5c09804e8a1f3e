// Package report fetches a baby's recent events and renders daily and weekly
// summaries through the summary engine.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/csickelco/newbie-sub000/internal/logger"
	"github.com/csickelco/newbie-sub000/internal/publish"
	"github.com/csickelco/newbie-sub000/internal/store"
	"github.com/csickelco/newbie-sub000/internal/summary"
)

type EventSource interface {
	FeedsSince(ctx context.Context, babyID string, since time.Time) ([]summary.FeedEvent, error)
	DiapersSince(ctx context.Context, babyID string, since time.Time) ([]summary.DiaperEvent, error)
	SleepsSince(ctx context.Context, babyID string, since time.Time) ([]summary.SleepInterval, error)
	WeightsSince(ctx context.Context, babyID string, since time.Time) ([]summary.WeightSample, error)
	ActivitiesSince(ctx context.Context, babyID string, since time.Time) ([]summary.ActivityEvent, error)
	WordsSince(ctx context.Context, babyID string, since time.Time) ([]summary.WordEvent, error)
	LatestFeed(ctx context.Context, babyID string) (*time.Time, error)
}

type BabySource interface {
	BabyForUser(ctx context.Context, userID string) (store.BabyRecord, error)
}

type Publisher interface {
	Publish(ctx context.Context, msg publish.SummaryMessage) error
}

type Recorder interface {
	SummaryRendered(window string, elapsed time.Duration)
}

type Service struct {
	babies    BabySource
	events    EventSource
	publisher Publisher
	recorder  Recorder
	log       logger.Logger
	location  *time.Location
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDefaultLocation sets the timezone used for babies without one.
func WithDefaultLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(babies BabySource, events EventSource, opts ...Option) *Service {
	s := &Service{
		babies:   babies,
		events:   events,
		log:      logger.Named("report"),
		location: time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) GetDailySummary(ctx context.Context, userID string) (summary.RenderedResponse, error) {
	return s.render(ctx, userID, summary.DailyKind)
}

func (s *Service) GetWeeklySummary(ctx context.Context, userID string) (summary.RenderedResponse, error) {
	return s.render(ctx, userID, summary.WeeklyKind)
}

// GetLastFeed describes how long ago the most recent feed started.
func (s *Service) GetLastFeed(ctx context.Context, userID string) (string, error) {
	baby, err := s.babies.BabyForUser(ctx, userID)
	if err != nil {
		return "", err
	}
	latest, err := s.events.LatestFeed(ctx, baby.ID)
	if err != nil {
		return "", fmt.Errorf("load latest feed: %w", err)
	}
	if latest == nil {
		return fmt.Sprintf("There are no feedings recorded for %s yet.", baby.Name), nil
	}
	now := s.now()
	if latest.After(now) {
		return fmt.Sprintf("%s last ate just now.", baby.Name), nil
	}
	return fmt.Sprintf("%s last ate %s ago.", baby.Name, summary.CalculateDuration(*latest, now)), nil
}

func (s *Service) render(ctx context.Context, userID string, kind summary.WindowKind) (summary.RenderedResponse, error) {
	started := time.Now()
	baby, err := s.babies.BabyForUser(ctx, userID)
	if err != nil {
		return summary.RenderedResponse{}, err
	}

	loc := s.locationFor(ctx, baby)
	now := s.now().In(loc)
	window := summary.DailyWindow(now)
	if kind == summary.WeeklyKind {
		window = summary.WeeklyWindow(now)
	}
	since, err := time.ParseInLocation("2006-01-02", window.First, loc)
	if err != nil {
		return summary.RenderedResponse{}, fmt.Errorf("resolve window start: %w", err)
	}

	in, err := s.fetch(ctx, baby.ID, since)
	if err != nil {
		s.log.Error(ctx, "summary fetch failed", logger.String("window", kind.String()), logger.String("baby_id", baby.ID), logger.Error(err))
		return summary.RenderedResponse{}, err
	}
	in.Baby = summary.Baby{Name: baby.Name, Sex: baby.Sex, Birthdate: baby.Birthdate}
	in.Now = now
	localize(&in, loc)

	var rendered summary.RenderedResponse
	if kind == summary.WeeklyKind {
		rendered = summary.Weekly(in)
	} else {
		rendered = summary.Daily(in)
	}

	elapsed := time.Since(started)
	if s.recorder != nil {
		s.recorder.SummaryRendered(kind.String(), elapsed)
	}
	s.log.Info(ctx, "summary rendered",
		logger.String("window", kind.String()),
		logger.String("baby_id", baby.ID),
		logger.Int("feeds", len(in.Feeds)),
		logger.Int("diapers", len(in.Diapers)),
		logger.Int("sleeps", len(in.Sleeps)),
		logger.Any("elapsed", elapsed),
	)

	if s.publisher != nil {
		msg := publish.NewSummaryMessage(baby.ID, userID, kind.String(), rendered, now)
		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.log.Warn(ctx, "summary publish skipped", logger.String("window", kind.String()), logger.Error(err))
		}
	}
	return rendered, nil
}

func (s *Service) locationFor(ctx context.Context, baby store.BabyRecord) *time.Location {
	name := strings.TrimSpace(baby.Timezone)
	if name == "" {
		return s.location
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		s.log.Warn(ctx, "unknown baby timezone, using default", logger.String("timezone", name), logger.Error(err))
		return s.location
	}
	return loc
}

// fetch loads every category concurrently; the first failure cancels the
// rest.
func (s *Service) fetch(ctx context.Context, babyID string, since time.Time) (summary.Input, error) {
	var in summary.Input
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.Feeds, err = s.events.FeedsSince(gctx, babyID, since)
		return wrapFetch("feeds", err)
	})
	g.Go(func() (err error) {
		in.Diapers, err = s.events.DiapersSince(gctx, babyID, since)
		return wrapFetch("diapers", err)
	})
	g.Go(func() (err error) {
		in.Sleeps, err = s.events.SleepsSince(gctx, babyID, since)
		return wrapFetch("sleeps", err)
	})
	g.Go(func() (err error) {
		in.Weights, err = s.events.WeightsSince(gctx, babyID, since)
		return wrapFetch("weights", err)
	})
	g.Go(func() (err error) {
		in.Activities, err = s.events.ActivitiesSince(gctx, babyID, since)
		return wrapFetch("activities", err)
	})
	g.Go(func() (err error) {
		in.Words, err = s.events.WordsSince(gctx, babyID, since)
		return wrapFetch("words", err)
	})
	if err := g.Wait(); err != nil {
		return summary.Input{}, err
	}
	return in, nil
}

func wrapFetch(category string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load %s: %w", category, err)
}

func localize(in *summary.Input, loc *time.Location) {
	for i := range in.Feeds {
		in.Feeds[i].At = in.Feeds[i].At.In(loc)
	}
	for i := range in.Diapers {
		in.Diapers[i].At = in.Diapers[i].At.In(loc)
	}
	for i := range in.Sleeps {
		in.Sleeps[i].Start = in.Sleeps[i].Start.In(loc)
		if in.Sleeps[i].End != nil {
			end := in.Sleeps[i].End.In(loc)
			in.Sleeps[i].End = &end
		}
	}
	for i := range in.Weights {
		in.Weights[i].At = in.Weights[i].At.In(loc)
	}
	for i := range in.Activities {
		in.Activities[i].At = in.Activities[i].At.In(loc)
	}
	for i := range in.Words {
		in.Words[i].At = in.Words[i].At.In(loc)
	}
}
