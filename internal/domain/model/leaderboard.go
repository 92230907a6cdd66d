package model

import "time"

// LeaderboardEntry is derived data: TotalSolved is maintained by the
// projector, Rank is recomputed at read time and never stored.
type LeaderboardEntry struct {
	Rank             int       `json:"rank"`
	UserID           string    `json:"user_id"`
	TotalSolved      int       `json:"total_solved"`
	LastSubmissionAt time.Time `json:"last_submission_at"`
}
