package trackmmr

import (
	"time"

	"github.com/escrow-tf/trackmmr/gc"
)

// MapMatchHistory turns coordinator entries into rating records in the order they were
// delivered. Entries without a previous rank or a rank change did not affect the rating
// (placement and unranked games) and are dropped.
func MapMatchHistory(loc *time.Location, entries []RawMatchEntry) []RatingRecord {
	if loc == nil {
		loc = time.Local
	}

	records := make([]RatingRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.PreviousRank == 0 && entry.RankChange == 0 {
			continue
		}

		records = append(records, RatingRecord{
			Timestamp:    time.Unix(int64(entry.StartTime), 0).In(loc),
			MatchID:      entry.MatchID,
			Rating:       int(entry.PreviousRank) + int(entry.RankChange),
			RatingChange: int(entry.RankChange),
			HeroID:       int(entry.HeroID),
			Won:          entry.Winner,
		})
	}
	return records
}

func rawEntries(matches []gc.Match) []RawMatchEntry {
	entries := make([]RawMatchEntry, len(matches))
	for i, match := range matches {
		entries[i] = RawMatchEntry{
			MatchID:      match.MatchID,
			StartTime:    match.StartTime,
			PreviousRank: match.PreviousRank,
			RankChange:   match.RankChange,
			HeroID:       match.HeroID,
			Winner:       match.Winner,
		}
	}
	return entries
}
