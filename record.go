package trackmmr

import (
	"context"
	"fmt"
	"time"
)

// RatingRecord is one ranked match and the rating it left the player on.
type RatingRecord struct {
	Timestamp    time.Time
	MatchID      uint64
	Rating       int
	RatingChange int
	HeroID       int
	Won          bool
}

func (r RatingRecord) Outcome() string {
	if r.Won {
		return "Win"
	}
	return "Loss"
}

// ChangeDisplay renders the rating delta with an explicit sign, padding zero to the same width.
func (r RatingRecord) ChangeDisplay() string {
	if r.RatingChange == 0 {
		return "  0"
	}
	return fmt.Sprintf("%+d", r.RatingChange)
}

// RawMatchEntry is a match as the coordinator reports it.
type RawMatchEntry struct {
	MatchID      uint64
	StartTime    uint32
	PreviousRank uint32
	RankChange   int32
	HeroID       uint32
	Winner       bool
}

type Store interface {
	// SaveRecords inserts records not already stored and returns how many were new.
	SaveRecords(ctx context.Context, records []RatingRecord) (int, error)
	// GetHistory returns records from the last sinceDays days, newest first. A non-positive
	// sinceDays returns everything.
	GetHistory(ctx context.Context, sinceDays int) ([]RatingRecord, error)
}
