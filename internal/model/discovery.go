package model

import "time"

// Swipe directions.
const (
	SwipeLike = "like"
	SwipePass = "pass"
)

// SwipeRequest records a like or pass on another member.
type SwipeRequest struct {
	TargetID  int64  `json:"target_id"`
	Direction string `json:"direction"`
}

// SwipeResponse reports whether a like was reciprocated.
type SwipeResponse struct {
	Matched bool `json:"matched"`
}

// Match is a mutual like.
type Match struct {
	Profile   ProfileCard `json:"profile"`
	MatchedAt time.Time   `json:"matched_at"`
}

// ShortlistRequest adds a member to the caller's shortlist.
type ShortlistRequest struct {
	TargetID int64 `json:"target_id"`
}

// ShortlistEntry is a shortlisted member.
type ShortlistEntry struct {
	Profile ProfileCard `json:"profile"`
	AddedAt time.Time   `json:"added_at"`
}

// CommonInterests is the overlap between two profiles.
type CommonInterests struct {
	SameReligion     bool     `json:"same_religion"`
	SameMotherTongue bool     `json:"same_mother_tongue"`
	SameCity         bool     `json:"same_city"`
	SameEducation    bool     `json:"same_education"`
	Interests        []string `json:"interests"`
	Languages        []string `json:"languages"`
	Score            int      `json:"score"`
}
