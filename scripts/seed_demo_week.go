package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/csickelco/newbie-sub000/internal/config"
	"github.com/csickelco/newbie-sub000/internal/db"
	"github.com/csickelco/newbie-sub000/internal/logger"
	"github.com/csickelco/newbie-sub000/internal/store"
)

const seedSource = "SEED"

type seedEvent struct {
	Type    string
	StartHM string
	EndHM   string
	Value   map[string]any
}

// dayPlan is replayed for every seeded day; the weight grows by one ounce a
// day so weekly summaries report a gain.
func dayPlan(dayIndex int) []seedEvent {
	plan := []seedEvent{
		{Type: store.TypeSleep, StartHM: "00:30", EndHM: "03:10"},
		{Type: store.TypeFormula, StartHM: "03:20", Value: map[string]any{"ounces": 4}},
		{Type: store.TypePee, StartHM: "03:35"},
		{Type: store.TypeSleep, StartHM: "03:50", EndHM: "06:40"},
		{Type: store.TypeFormula, StartHM: "06:50", Value: map[string]any{"ml": 150}},
		{Type: store.TypeDiaper, StartHM: "07:05", Value: map[string]any{"wet": true, "dirty": true}},
		{Type: store.TypeWeight, StartHM: "08:00", Value: map[string]any{"ounces": 176 + dayIndex}},
		{Type: store.TypeSleep, StartHM: "09:15", EndHM: "10:45"},
		{Type: store.TypeBreastfeed, StartHM: "11:00"},
		{Type: store.TypeActivity, StartHM: "11:30", Value: map[string]any{"activity": "tummy time"}},
		{Type: store.TypePoo, StartHM: "12:10"},
		{Type: store.TypeFormula, StartHM: "14:00", Value: map[string]any{"ounces": 5}},
		{Type: store.TypeSleep, StartHM: "15:00", EndHM: "16:20"},
		{Type: store.TypePee, StartHM: "16:30"},
		{Type: store.TypeActivity, StartHM: "17:00", Value: map[string]any{"activity": "bath"}},
		{Type: store.TypeFormula, StartHM: "18:30", Value: map[string]any{"ounces": 5}},
		{Type: store.TypeSleep, StartHM: "20:00", EndHM: "23:50"},
	}
	if dayIndex%3 == 2 {
		plan = append(plan, seedEvent{Type: store.TypeWord, StartHM: "17:30", Value: map[string]any{"word": "mama"}})
	}
	return plan
}

func main() {
	var (
		mode     string
		babyID   string
		userID   string
		days     int
		timezone string
		database string
	)

	flag.StringVar(&mode, "mode", "seed", "seed or cleanup")
	flag.StringVar(&babyID, "baby-id", "", "target baby id (default: latest created baby)")
	flag.StringVar(&userID, "user-id", "", "createdBy user id (default: household owner)")
	flag.IntVar(&days, "days", 7, "number of days to seed, ending today")
	flag.StringVar(&timezone, "tz", "", "IANA timezone for the local schedule (default: DEFAULT_TIMEZONE)")
	flag.StringVar(&database, "db", "", "DATABASE_URL override")
	flag.Parse()

	if err := logger.Init("info"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.Named("seed")
	ctx := context.Background()

	if err := run(ctx, mode, babyID, userID, days, timezone, database); err != nil {
		log.Error(ctx, "seed failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, mode, babyID, userID string, days int, timezone, database string) error {
	log := logger.Named("seed")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dbURL := strings.TrimSpace(database)
	if dbURL == "" {
		dbURL = cfg.DatabaseURL
	}
	if strings.TrimSpace(timezone) == "" {
		timezone = cfg.DefaultTimezone
	}

	conn, err := db.Connect(ctx, dbURL, db.WithMaxConns(2), db.WithPing())
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer conn.Close()

	targetBabyID, householdID, err := resolveTargetBaby(ctx, conn, babyID)
	if err != nil {
		return fmt.Errorf("resolve baby: %w", err)
	}

	targetUserID := strings.TrimSpace(userID)
	if targetUserID == "" {
		targetUserID, err = resolveOwnerUser(ctx, conn, householdID)
		if err != nil {
			return fmt.Errorf("resolve owner user: %w", err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "cleanup", "delete", "remove":
		deleted, err := cleanupSeed(ctx, conn, targetBabyID)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		log.Info(ctx, "cleanup complete", logger.String("baby_id", targetBabyID), logger.Any("deleted", deleted))
		return nil
	case "seed":
	default:
		return fmt.Errorf("unsupported mode %q (use seed or cleanup)", mode)
	}

	if days < 1 {
		return fmt.Errorf("days must be positive, got %d", days)
	}
	location, err := time.LoadLocation(strings.TrimSpace(timezone))
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Re-running replaces the previous seed.
	deleted, err := cleanupSeedWithTx(ctx, tx, targetBabyID)
	if err != nil {
		return fmt.Errorf("cleanup existing seed rows: %w", err)
	}

	events := store.New(tx)
	today := time.Now().In(location)
	inserted := 0
	for offset := days - 1; offset >= 0; offset-- {
		localDate := today.AddDate(0, 0, -offset).Format("2006-01-02")
		for _, entry := range dayPlan(days - 1 - offset) {
			event, err := buildEvent(targetBabyID, targetUserID, localDate, entry, location)
			if err != nil {
				return err
			}
			if event.Start.After(today) {
				continue
			}
			if _, err := events.InsertEvent(ctx, event); err != nil {
				return fmt.Errorf("insert %s at %s %s: %w", entry.Type, localDate, entry.StartHM, err)
			}
			inserted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Info(ctx, "seed complete",
		logger.String("baby_id", targetBabyID),
		logger.String("user_id", targetUserID),
		logger.String("tz", timezone),
		logger.Int("days", days),
		logger.Int("inserted", inserted),
		logger.Any("replaced", deleted),
	)
	return nil
}

func buildEvent(babyID, userID, localDate string, entry seedEvent, location *time.Location) (store.NewEvent, error) {
	start, err := parseLocalDateTime(localDate, entry.StartHM, location)
	if err != nil {
		return store.NewEvent{}, fmt.Errorf("parse start time (%s %s): %w", localDate, entry.StartHM, err)
	}
	event := store.NewEvent{
		BabyID:    babyID,
		Type:      entry.Type,
		Start:     start,
		Value:     entry.Value,
		Source:    seedSource,
		CreatedBy: userID,
	}
	if strings.TrimSpace(entry.EndHM) != "" {
		end, err := parseLocalDateTime(localDate, entry.EndHM, location)
		if err != nil {
			return store.NewEvent{}, fmt.Errorf("parse end time (%s %s): %w", localDate, entry.EndHM, err)
		}
		event.End = &end
	}
	return event, nil
}

func resolveTargetBaby(ctx context.Context, conn store.Querier, explicitBabyID string) (babyID string, householdID string, err error) {
	explicitBabyID = strings.TrimSpace(explicitBabyID)
	if explicitBabyID != "" {
		err = conn.QueryRow(
			ctx,
			`SELECT id, "householdId" FROM "Baby" WHERE id = $1`,
			explicitBabyID,
		).Scan(&babyID, &householdID)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", fmt.Errorf("baby not found: %s", explicitBabyID)
		}
		return babyID, householdID, err
	}

	err = conn.QueryRow(
		ctx,
		`SELECT id, "householdId" FROM "Baby" ORDER BY "createdAt" DESC LIMIT 1`,
	).Scan(&babyID, &householdID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", errors.New("no babies found")
	}
	return babyID, householdID, err
}

func resolveOwnerUser(ctx context.Context, conn store.Querier, householdID string) (string, error) {
	var userID string
	err := conn.QueryRow(
		ctx,
		`SELECT "ownerUserId" FROM "Household" WHERE id = $1`,
		householdID,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("household not found: %s", householdID)
	}
	return userID, err
}

func parseLocalDateTime(localDate, hourMinute string, location *time.Location) (time.Time, error) {
	parsed, err := time.ParseInLocation(
		"2006-01-02 15:04",
		localDate+" "+strings.TrimSpace(hourMinute),
		location,
	)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func cleanupSeed(ctx context.Context, conn *pgxpool.Pool, babyID string) (int64, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	deleted, err := cleanupSeedWithTx(ctx, tx, babyID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return deleted, nil
}

func cleanupSeedWithTx(ctx context.Context, tx pgx.Tx, babyID string) (int64, error) {
	result, err := tx.Exec(
		ctx,
		`DELETE FROM "Event" WHERE "babyId" = $1 AND source = $2`,
		babyID,
		seedSource,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
