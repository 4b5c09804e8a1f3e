// Package store reads and writes caregiving events and baby records in
// Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/csickelco/newbie-sub000/internal/summary"
)

var (
	ErrBabyNotFound = errors.New("baby not found")
	ErrInvalidEvent = errors.New("invalid event")
)

const (
	TypeFormula    = "FORMULA"
	TypeBreastfeed = "BREASTFEED"
	TypeFeed       = "FEED"
	TypePee        = "PEE"
	TypePoo        = "POO"
	TypeDiaper     = "DIAPER"
	TypeSleep      = "SLEEP"
	TypeGrowth     = "GROWTH"
	TypeWeight     = "WEIGHT"
	TypeActivity   = "ACTIVITY"
	TypeWord       = "WORD"
)

var (
	feedTypes     = []string{TypeFormula, TypeBreastfeed, TypeFeed}
	diaperTypes   = []string{TypePee, TypePoo, TypeDiaper}
	sleepTypes    = []string{TypeSleep}
	weightTypes   = []string{TypeGrowth, TypeWeight}
	activityTypes = []string{TypeActivity}
	wordTypes     = []string{TypeWord}
)

// Category maps an event type to the summary category it feeds, or "" when
// the type is not summarized.
func Category(eventType string) string {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case TypeFormula, TypeBreastfeed, TypeFeed:
		return "feed"
	case TypePee, TypePoo, TypeDiaper:
		return "diaper"
	case TypeSleep:
		return "sleep"
	case TypeGrowth, TypeWeight:
		return "weight"
	case TypeActivity:
		return "activity"
	case TypeWord:
		return "word"
	default:
		return ""
	}
}

type Querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// QueryObserver receives the latency and outcome of every category query.
type QueryObserver interface {
	StoreQuery(category string, elapsed time.Duration, err error)
}

type BabyRecord struct {
	ID          string
	HouseholdID string
	Name        string
	Sex         string
	Birthdate   time.Time
	Timezone    string
}

type NewEvent struct {
	BabyID    string
	Type      string
	Start     time.Time
	End       *time.Time
	Value     map[string]any
	Source    string
	CreatedBy string
}

type Store struct {
	db       Querier
	observer QueryObserver
	timeout  time.Duration
}

type Option func(*Store)

func WithObserver(observer QueryObserver) Option {
	return func(s *Store) {
		s.observer = observer
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func New(db Querier, opts ...Option) *Store {
	s := &Store{db: db, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) observe(category string, started time.Time, err error) {
	if s.observer != nil {
		s.observer.StoreQuery(category, time.Since(started), err)
	}
}

// BabyForUser resolves the user's default household and returns its first
// registered baby.
func (s *Store) BabyForUser(ctx context.Context, userID string) (BabyRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	started := time.Now()
	record, err := s.babyForUser(ctx, strings.TrimSpace(userID))
	if errors.Is(err, ErrBabyNotFound) {
		s.observe("baby", started, nil)
		return BabyRecord{}, err
	}
	s.observe("baby", started, err)
	return record, err
}

func (s *Store) babyForUser(ctx context.Context, userID string) (BabyRecord, error) {
	if userID == "" {
		return BabyRecord{}, ErrBabyNotFound
	}
	householdID, err := s.resolveDefaultHousehold(ctx, userID)
	if err != nil {
		return BabyRecord{}, err
	}

	record := BabyRecord{HouseholdID: householdID}
	var sex, timezone *string
	err = s.db.QueryRow(
		ctx,
		`SELECT id, name, sex, "birthDate", timezone
		 FROM "Baby"
		 WHERE "householdId" = $1
		 ORDER BY "createdAt" ASC, id ASC
		 LIMIT 1`,
		householdID,
	).Scan(&record.ID, &record.Name, &sex, &record.Birthdate, &timezone)
	if err != nil && isUndefinedSchemaReferenceError(err) {
		// Older schemas carry no timezone column; the caller falls back to
		// the configured default.
		timezone = nil
		err = s.db.QueryRow(
			ctx,
			`SELECT id, name, sex, "birthDate"
			 FROM "Baby"
			 WHERE "householdId" = $1
			 ORDER BY "createdAt" ASC, id ASC
			 LIMIT 1`,
			householdID,
		).Scan(&record.ID, &record.Name, &sex, &record.Birthdate)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return BabyRecord{}, ErrBabyNotFound
	}
	if err != nil {
		return BabyRecord{}, fmt.Errorf("load baby for household %s: %w", householdID, err)
	}
	if sex != nil {
		record.Sex = normalizeBabySex(*sex)
	} else {
		record.Sex = "unknown"
	}
	if timezone != nil {
		record.Timezone = strings.TrimSpace(*timezone)
	}
	return record, nil
}

func (s *Store) resolveDefaultHousehold(ctx context.Context, userID string) (string, error) {
	var householdID string
	err := s.db.QueryRow(
		ctx,
		`SELECT household_id
		 FROM (
			SELECT id AS household_id, 0 AS priority, "createdAt" AS created_at
			FROM "Household"
			WHERE "ownerUserId" = $1
			UNION ALL
			SELECT "householdId" AS household_id, 1 AS priority, "createdAt" AS created_at
			FROM "HouseholdMember"
			WHERE "userId" = $1 AND status = 'ACTIVE'
		 ) candidates
		 ORDER BY priority ASC, created_at ASC
		 LIMIT 1`,
		userID,
	).Scan(&householdID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrBabyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve household for user %s: %w", userID, err)
	}
	return householdID, nil
}

func (s *Store) eventsSince(ctx context.Context, category, babyID string, types []string, since time.Time) ([]eventRow, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	started := time.Now()
	rows, err := s.db.Query(
		ctx,
		`SELECT type, "startTime", "endTime", "valueJson"
		 FROM "Event"
		 WHERE "babyId" = $1
		   AND type = ANY($2)
		   AND "startTime" >= $3
		 ORDER BY "startTime" ASC, id ASC`,
		babyID,
		types,
		since.UTC(),
	)
	if err != nil {
		s.observe(category, started, err)
		return nil, fmt.Errorf("query %s events: %w", category, err)
	}
	defer rows.Close()

	var out []eventRow
	for rows.Next() {
		var (
			row       eventRow
			valueJSON []byte
		)
		if err := rows.Scan(&row.Type, &row.Start, &row.End, &valueJSON); err != nil {
			s.observe(category, started, err)
			return nil, fmt.Errorf("scan %s event: %w", category, err)
		}
		row.Type = strings.ToUpper(strings.TrimSpace(row.Type))
		row.Value = parseJSONStringMap(valueJSON)
		out = append(out, row)
	}
	err = rows.Err()
	s.observe(category, started, err)
	if err != nil {
		return nil, fmt.Errorf("iterate %s events: %w", category, err)
	}
	return out, nil
}

func (s *Store) FeedsSince(ctx context.Context, babyID string, since time.Time) ([]summary.FeedEvent, error) {
	rows, err := s.eventsSince(ctx, "feed", babyID, feedTypes, since)
	if err != nil {
		return nil, err
	}
	feeds := make([]summary.FeedEvent, 0, len(rows))
	for _, row := range rows {
		feeds = append(feeds, toFeedEvent(row))
	}
	return feeds, nil
}

func (s *Store) DiapersSince(ctx context.Context, babyID string, since time.Time) ([]summary.DiaperEvent, error) {
	rows, err := s.eventsSince(ctx, "diaper", babyID, diaperTypes, since)
	if err != nil {
		return nil, err
	}
	diapers := make([]summary.DiaperEvent, 0, len(rows))
	for _, row := range rows {
		diapers = append(diapers, toDiaperEvent(row))
	}
	return diapers, nil
}

func (s *Store) SleepsSince(ctx context.Context, babyID string, since time.Time) ([]summary.SleepInterval, error) {
	rows, err := s.eventsSince(ctx, "sleep", babyID, sleepTypes, since)
	if err != nil {
		return nil, err
	}
	sleeps := make([]summary.SleepInterval, 0, len(rows))
	for _, row := range rows {
		sleeps = append(sleeps, toSleepInterval(row))
	}
	return sleeps, nil
}

func (s *Store) WeightsSince(ctx context.Context, babyID string, since time.Time) ([]summary.WeightSample, error) {
	rows, err := s.eventsSince(ctx, "weight", babyID, weightTypes, since)
	if err != nil {
		return nil, err
	}
	weights := make([]summary.WeightSample, 0, len(rows))
	for _, row := range rows {
		if sample, ok := toWeightSample(row); ok {
			weights = append(weights, sample)
		}
	}
	return weights, nil
}

func (s *Store) ActivitiesSince(ctx context.Context, babyID string, since time.Time) ([]summary.ActivityEvent, error) {
	rows, err := s.eventsSince(ctx, "activity", babyID, activityTypes, since)
	if err != nil {
		return nil, err
	}
	activities := make([]summary.ActivityEvent, 0, len(rows))
	for _, row := range rows {
		if event, ok := toActivityEvent(row); ok {
			activities = append(activities, event)
		}
	}
	return activities, nil
}

func (s *Store) WordsSince(ctx context.Context, babyID string, since time.Time) ([]summary.WordEvent, error) {
	rows, err := s.eventsSince(ctx, "word", babyID, wordTypes, since)
	if err != nil {
		return nil, err
	}
	words := make([]summary.WordEvent, 0, len(rows))
	for _, row := range rows {
		if event, ok := toWordEvent(row); ok {
			words = append(words, event)
		}
	}
	return words, nil
}

// LatestFeed returns the start of the most recent feed, or nil when none is
// recorded.
func (s *Store) LatestFeed(ctx context.Context, babyID string) (*time.Time, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	started := time.Now()
	var latest time.Time
	err := s.db.QueryRow(
		ctx,
		`SELECT "startTime" FROM "Event"
		 WHERE "babyId" = $1
		   AND type = ANY($2)
		 ORDER BY "startTime" DESC LIMIT 1`,
		babyID,
		feedTypes,
	).Scan(&latest)
	if errors.Is(err, pgx.ErrNoRows) {
		s.observe("feed", started, nil)
		return nil, nil
	}
	s.observe("feed", started, err)
	if err != nil {
		return nil, fmt.Errorf("query latest feed: %w", err)
	}
	latestUTC := latest.UTC()
	return &latestUTC, nil
}

// InsertEvent validates and stores one event, returning its id.
func (s *Store) InsertEvent(ctx context.Context, event NewEvent) (string, error) {
	if err := validateEvent(&event); err != nil {
		return "", err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	valueJSON, err := json.Marshal(event.Value)
	if err != nil {
		return "", fmt.Errorf("%w: value is not serializable", ErrInvalidEvent)
	}

	var endTime *time.Time
	if event.End != nil {
		endUTC := event.End.UTC()
		endTime = &endUTC
	}

	eventID := uuid.NewString()
	started := time.Now()
	_, err = s.db.Exec(
		ctx,
		`INSERT INTO "Event" (
			id, "babyId", type, "startTime", "endTime", "valueJson", "metadataJson", source, "createdBy", "createdAt"
		) VALUES ($1, $2, $3, $4, $5, $6, '{}', $7, $8, NOW())`,
		eventID,
		event.BabyID,
		event.Type,
		event.Start.UTC(),
		endTime,
		valueJSON,
		event.Source,
		event.CreatedBy,
	)
	s.observe("insert", started, err)
	if err != nil {
		return "", fmt.Errorf("insert %s event: %w", event.Type, err)
	}
	return eventID, nil
}

func validateEvent(event *NewEvent) error {
	event.BabyID = strings.TrimSpace(event.BabyID)
	event.Type = strings.ToUpper(strings.TrimSpace(event.Type))
	event.Source = strings.ToUpper(strings.TrimSpace(event.Source))
	if event.Source == "" {
		event.Source = "MANUAL"
	}
	if event.Value == nil {
		event.Value = map[string]any{}
	}

	if event.BabyID == "" {
		return fmt.Errorf("%w: baby id is required", ErrInvalidEvent)
	}
	if event.Start.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrInvalidEvent)
	}
	if event.End != nil && event.End.Before(event.Start) {
		return fmt.Errorf("%w: end time is before start time", ErrInvalidEvent)
	}

	switch Category(event.Type) {
	case "feed", "diaper", "sleep":
	case "weight":
		if _, ok := WeightOunces(event.Value); !ok {
			return fmt.Errorf("%w: weight requires a positive ounces or weight_kg value", ErrInvalidEvent)
		}
	case "activity":
		if ActivityName(event.Value) == "" {
			return fmt.Errorf("%w: activity name is required", ErrInvalidEvent)
		}
	case "word":
		if SpokenWord(event.Value) == "" {
			return fmt.Errorf("%w: word is required", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unsupported event type %q", ErrInvalidEvent, event.Type)
	}
	return nil
}

func isUndefinedSchemaReferenceError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "42703" || pgErr.Code == "42P01"
}
