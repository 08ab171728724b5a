package models

import "time"

// PlayRecord aggregates plays for one piece of content across every token
// instance that references it. Document id is the media key.
type PlayRecord struct {
	MediaKey      string    `firestore:"media_key"`
	PlayCount     int64     `firestore:"play_count"`
	FirstPlayedAt time.Time `firestore:"first_played_at"`
	LastPlayedAt  time.Time `firestore:"last_played_at"`
	// Denormalized display metadata for fast leaderboard reads
	Name     string `firestore:"name,omitempty"`
	Image    string `firestore:"image,omitempty"`
	AudioURL string `firestore:"audio_url,omitempty"`
}

// LikeRecord is the global like counter for one media key. The document is
// deleted when the count returns to zero.
type LikeRecord struct {
	MediaKey  string    `firestore:"media_key"`
	LikeCount int64     `firestore:"like_count"`
	Name      string    `firestore:"name,omitempty"`
	Image     string    `firestore:"image,omitempty"`
	AudioURL  string    `firestore:"audio_url,omitempty"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// UserLikeRecord marks that a user likes a piece of content; existence of the
// document is the boolean. Document id is "<user_id>_<media_key>". Legacy
// documents created before content fingerprinting carry a per-token id and an
// empty MediaKey; MigrateLegacyLikes collapses them.
type UserLikeRecord struct {
	UserID       string    `firestore:"user_id"`
	MediaKey     string    `firestore:"media_key,omitempty"`
	Contract     string    `firestore:"contract"`
	TokenID      string    `firestore:"token_id"`
	Name         string    `firestore:"name,omitempty"`
	Image        string    `firestore:"image,omitempty"`
	Audio        string    `firestore:"audio,omitempty"`
	AnimationURL string    `firestore:"animation_url,omitempty"`
	CreatedAt    time.Time `firestore:"created_at"`
}

// LikeState is what the UI needs to render a like button.
type LikeState struct {
	Liked bool  `json:"liked"`
	Count int64 `json:"count"`
}

// TopPlayedEntry is one row of the stored leaderboard snapshot. The snapshot
// is recomputed and replaced wholesale on refresh; FirstEnteredTopAt survives
// across refreshes for entries that stay on the board.
type TopPlayedEntry struct {
	Rank              int       `firestore:"rank" json:"rank"`
	MediaKey          string    `firestore:"media_key" json:"media_key"`
	PlayCount         int64     `firestore:"play_count" json:"play_count"`
	LastPlayedAt      time.Time `firestore:"last_played_at" json:"last_played_at"`
	Name              string    `firestore:"name,omitempty" json:"name,omitempty"`
	Image             string    `firestore:"image,omitempty" json:"image,omitempty"`
	AudioURL          string    `firestore:"audio_url,omitempty" json:"audio_url,omitempty"`
	FirstEnteredTopAt time.Time `firestore:"first_entered_top_at" json:"first_entered_top_at"`
	LastSeenInTopAt   time.Time `firestore:"last_seen_in_top_at" json:"last_seen_in_top_at"`
}

// CounterSnapshot is pushed to subscribers whenever either counter for a media
// key changes.
type CounterSnapshot struct {
	MediaKey  string    `json:"media_key"`
	PlayCount int64     `json:"play_count"`
	LikeCount int64     `json:"like_count"`
	At        time.Time `json:"at"`
}
