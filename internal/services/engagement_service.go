package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/samber/lo"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sonicframe/api/internal/models"
)

const (
	playsCollection     = "plays_global"
	likesCollection     = "likes_global"
	userLikesCollection = "user_likes"
	topPlayedCollection = "top_played"

	storeRetryAttempts = 3

	// Over-fetch factor for the leaderboard recompute: legacy token-keyed
	// records can shadow fingerprint-keyed ones for the same content, so we
	// read more rows than we need and dedupe by media key.
	topPlayedOverfetch = 3
)

// EngagementService aggregates play and like counters keyed by content
// fingerprint. Every counter mutation goes through a Firestore transaction so
// concurrent writers serialize in the store, never through client-side locks.
type EngagementService struct {
	firestoreClient *firestore.Client
	fingerprints    *FingerprintService
}

func NewEngagementService(firestoreClient *firestore.Client, fingerprints *FingerprintService) *EngagementService {
	return &EngagementService{
		firestoreClient: firestoreClient,
		fingerprints:    fingerprints,
	}
}

// RecordPlay counts one play for the token's content. The create-or-increment
// runs inside a transaction: two users playing the same content at once must
// both be counted.
func (s *EngagementService) RecordPlay(ctx context.Context, nft models.NormalizedNFT) error {
	mediaKey := s.fingerprints.Fingerprint(nft)
	playRef := s.firestoreClient.Collection(playsCollection).Doc(mediaKey)

	return withRetry(ctx, "record_play", storeRetryAttempts, func(ctx context.Context) error {
		return s.firestoreClient.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			now := time.Now()

			_, err := tx.Get(playRef)
			if status.Code(err) == codes.NotFound {
				return tx.Create(playRef, models.PlayRecord{
					MediaKey:      mediaKey,
					PlayCount:     1,
					FirstPlayedAt: now,
					LastPlayedAt:  now,
					Name:          nft.Name,
					Image:         nft.Image,
					AudioURL:      displayAudioURL(nft),
				})
			}
			if err != nil {
				return fmt.Errorf("failed to read play record: %w", err)
			}

			return tx.Update(playRef, []firestore.Update{
				{Path: "play_count", Value: firestore.Increment(1)},
				{Path: "last_played_at", Value: now},
			})
		})
	})
}

// ToggleLike flips the user's like for the token's content and returns the new
// liked state. Existence check, per-user record write and global counter
// adjustment happen in one transaction; the global record is deleted when its
// count returns to zero, so "has likes" is exactly "global doc exists".
func (s *EngagementService) ToggleLike(ctx context.Context, nft models.NormalizedNFT, userID string) (bool, error) {
	mediaKey := s.fingerprints.Fingerprint(nft)
	userLikeRef := s.firestoreClient.Collection(userLikesCollection).Doc(userLikeDocID(userID, mediaKey))
	likeRef := s.firestoreClient.Collection(likesCollection).Doc(mediaKey)

	var nowLiked bool
	err := withRetry(ctx, "toggle_like", storeRetryAttempts, func(ctx context.Context) error {
		return s.firestoreClient.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			now := time.Now()

			// All reads before any write, per Firestore transaction rules.
			_, userErr := tx.Get(userLikeRef)
			likeDoc, likeErr := tx.Get(likeRef)

			if userErr != nil && status.Code(userErr) != codes.NotFound {
				return fmt.Errorf("failed to read user like: %w", userErr)
			}
			if likeErr != nil && status.Code(likeErr) != codes.NotFound {
				return fmt.Errorf("failed to read like record: %w", likeErr)
			}

			alreadyLiked := userErr == nil
			if alreadyLiked {
				if err := tx.Delete(userLikeRef); err != nil {
					return err
				}

				var rec models.LikeRecord
				if likeErr == nil {
					if err := likeDoc.DataTo(&rec); err != nil {
						return fmt.Errorf("failed to parse like record: %w", err)
					}
				}
				if rec.LikeCount <= 1 {
					if likeErr == nil {
						if err := tx.Delete(likeRef); err != nil {
							return err
						}
					}
				} else if err := tx.Update(likeRef, []firestore.Update{
					{Path: "like_count", Value: firestore.Increment(-1)},
					{Path: "updated_at", Value: now},
				}); err != nil {
					return err
				}

				nowLiked = false
				return nil
			}

			if err := tx.Create(userLikeRef, models.UserLikeRecord{
				UserID:       userID,
				MediaKey:     mediaKey,
				Contract:     nft.Contract,
				TokenID:      nft.TokenID,
				Name:         nft.Name,
				Image:        nft.Image,
				Audio:        nft.Audio,
				AnimationURL: nft.AnimationURL,
				CreatedAt:    now,
			}); err != nil {
				return err
			}

			if status.Code(likeErr) == codes.NotFound {
				if err := tx.Create(likeRef, models.LikeRecord{
					MediaKey:  mediaKey,
					LikeCount: 1,
					Name:      nft.Name,
					Image:     nft.Image,
					AudioURL:  displayAudioURL(nft),
					UpdatedAt: now,
				}); err != nil {
					return err
				}
			} else if err := tx.Update(likeRef, []firestore.Update{
				{Path: "like_count", Value: firestore.Increment(1)},
				{Path: "updated_at", Value: now},
			}); err != nil {
				return err
			}

			nowLiked = true
			return nil
		})
	})

	return nowLiked, err
}

// GetLikeState returns whether the user likes the token's content and the
// global count.
func (s *EngagementService) GetLikeState(ctx context.Context, nft models.NormalizedNFT, userID string) (models.LikeState, error) {
	mediaKey := s.fingerprints.Fingerprint(nft)

	var state models.LikeState

	_, err := s.firestoreClient.Collection(userLikesCollection).Doc(userLikeDocID(userID, mediaKey)).Get(ctx)
	switch {
	case err == nil:
		state.Liked = true
	case status.Code(err) != codes.NotFound:
		return state, fmt.Errorf("failed to read user like: %w", err)
	}

	likeDoc, err := s.firestoreClient.Collection(likesCollection).Doc(mediaKey).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("failed to read like record: %w", err)
	}

	var rec models.LikeRecord
	if err := likeDoc.DataTo(&rec); err != nil {
		return state, fmt.Errorf("failed to parse like record: %w", err)
	}
	state.Count = rec.LikeCount
	return state, nil
}

// GetPlayCount returns the global play count for the token's content, zero if
// it has never been played.
func (s *EngagementService) GetPlayCount(ctx context.Context, nft models.NormalizedNFT) (int64, error) {
	mediaKey := s.fingerprints.Fingerprint(nft)

	doc, err := s.firestoreClient.Collection(playsCollection).Doc(mediaKey).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read play record: %w", err)
	}

	var rec models.PlayRecord
	if err := doc.DataTo(&rec); err != nil {
		return 0, fmt.Errorf("failed to parse play record: %w", err)
	}
	return rec.PlayCount, nil
}

// GetTopPlayed recomputes the top-n leaderboard from the play records and
// replaces the stored snapshot wholesale. FirstEnteredTopAt survives for
// entries that were already on the board; ranks never drift because nothing is
// patched incrementally.
func (s *EngagementService) GetTopPlayed(ctx context.Context, n int) ([]models.TopPlayedEntry, error) {
	if n <= 0 {
		return nil, nil
	}

	query := s.firestoreClient.Collection(playsCollection).
		OrderBy("play_count", firestore.Desc).
		OrderBy("last_played_at", firestore.Desc).
		Limit(n * topPlayedOverfetch)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var records []models.PlayRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate play records: %w", err)
		}

		var rec models.PlayRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to parse play record: %w", err)
		}
		records = append(records, rec)
	}

	previous, previousRefs, err := s.readTopSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	entries := buildTopEntries(records, previous, n, time.Now())

	if err := s.replaceTopSnapshot(ctx, previousRefs, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *EngagementService) readTopSnapshot(ctx context.Context) (map[string]time.Time, []*firestore.DocumentRef, error) {
	iter := s.firestoreClient.Collection(topPlayedCollection).Documents(ctx)
	defer iter.Stop()

	firstEntered := make(map[string]time.Time)
	var refs []*firestore.DocumentRef
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read leaderboard snapshot: %w", err)
		}

		refs = append(refs, doc.Ref)
		var entry models.TopPlayedEntry
		if err := doc.DataTo(&entry); err == nil && entry.MediaKey != "" {
			firstEntered[entry.MediaKey] = entry.FirstEnteredTopAt
		}
	}
	return firstEntered, refs, nil
}

func (s *EngagementService) replaceTopSnapshot(ctx context.Context, oldRefs []*firestore.DocumentRef, entries []models.TopPlayedEntry) error {
	// Deletes and sets are both idempotent, so the whole replace retries as a
	// unit on transient failures.
	return withRetry(ctx, "replace_top_snapshot", storeRetryAttempts, func(ctx context.Context) error {
		bw := s.firestoreClient.BulkWriter(ctx)
		jobs := make([]*firestore.BulkWriterJob, 0, len(oldRefs)+len(entries))

		for _, ref := range oldRefs {
			job, err := bw.Delete(ref)
			if err != nil {
				return fmt.Errorf("failed to queue snapshot delete: %w", err)
			}
			jobs = append(jobs, job)
		}
		for _, entry := range entries {
			ref := s.firestoreClient.Collection(topPlayedCollection).Doc(topSnapshotDocID(entry.Rank))
			job, err := bw.Set(ref, entry)
			if err != nil {
				return fmt.Errorf("failed to queue snapshot write: %w", err)
			}
			jobs = append(jobs, job)
		}

		bw.End()
		return awaitBulkJobs(jobs)
	})
}

// awaitBulkJobs blocks on every queued BulkWriter job and surfaces the first
// failure; a write that never landed must not be reported as success.
func awaitBulkJobs(jobs []*firestore.BulkWriterJob) error {
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("bulk write failed: %w", err)
		}
	}
	return nil
}

// buildTopEntries ranks play records by (count desc, recency desc), dedupes by
// media key and truncates to n, carrying FirstEnteredTopAt over from the
// previous snapshot for entries that persist.
func buildTopEntries(records []models.PlayRecord, previousFirstEntered map[string]time.Time, n int, now time.Time) []models.TopPlayedEntry {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].PlayCount != records[j].PlayCount {
			return records[i].PlayCount > records[j].PlayCount
		}
		return records[i].LastPlayedAt.After(records[j].LastPlayedAt)
	})

	records = lo.UniqBy(records, func(r models.PlayRecord) string { return r.MediaKey })
	if len(records) > n {
		records = records[:n]
	}

	entries := make([]models.TopPlayedEntry, 0, len(records))
	for i, rec := range records {
		firstEntered := now
		if prev, ok := previousFirstEntered[rec.MediaKey]; ok && !prev.IsZero() {
			firstEntered = prev
		}
		entries = append(entries, models.TopPlayedEntry{
			Rank:              i + 1,
			MediaKey:          rec.MediaKey,
			PlayCount:         rec.PlayCount,
			LastPlayedAt:      rec.LastPlayedAt,
			Name:              rec.Name,
			Image:             rec.Image,
			AudioURL:          rec.AudioURL,
			FirstEnteredTopAt: firstEntered,
			LastSeenInTopAt:   now,
		})
	}
	return entries
}

// MigrateLegacyLikes collapses a user's legacy per-token like documents into
// one canonical fingerprint-keyed document per content group, keeping the most
// recent record of each group. Running it again finds one document per group
// and does nothing.
func (s *EngagementService) MigrateLegacyLikes(ctx context.Context, userID string) error {
	iter := s.firestoreClient.Collection(userLikesCollection).
		Where("user_id", "==", userID).
		Documents(ctx)
	defer iter.Stop()

	type likedDoc struct {
		ref *firestore.DocumentRef
		rec models.UserLikeRecord
	}

	groups := make(map[string][]likedDoc)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to iterate user likes: %w", err)
		}

		var rec models.UserLikeRecord
		if err := doc.DataTo(&rec); err != nil {
			return fmt.Errorf("failed to parse user like: %w", err)
		}

		mediaKey := rec.MediaKey
		if mediaKey == "" {
			mediaKey = s.fingerprints.Fingerprint(models.NormalizedNFT{
				Contract:     rec.Contract,
				TokenID:      rec.TokenID,
				Name:         rec.Name,
				Image:        rec.Image,
				Audio:        rec.Audio,
				AnimationURL: rec.AnimationURL,
			})
		}
		groups[mediaKey] = append(groups[mediaKey], likedDoc{ref: doc.Ref, rec: rec})
	}

	type canonicalWrite struct {
		ref *firestore.DocumentRef
		rec models.UserLikeRecord
	}
	var sets []canonicalWrite
	var deletes []*firestore.DocumentRef

	for mediaKey, docs := range groups {
		canonicalID := userLikeDocID(userID, mediaKey)

		// Most recently timestamped record wins the group.
		keep := docs[0]
		for _, d := range docs[1:] {
			if d.rec.CreatedAt.After(keep.rec.CreatedAt) {
				keep = d
			}
		}

		if len(docs) == 1 && keep.ref.ID == canonicalID && keep.rec.MediaKey == mediaKey {
			continue
		}

		keep.rec.MediaKey = mediaKey
		sets = append(sets, canonicalWrite{
			ref: s.firestoreClient.Collection(userLikesCollection).Doc(canonicalID),
			rec: keep.rec,
		})
		for _, d := range docs {
			if d.ref.ID == canonicalID {
				continue
			}
			deletes = append(deletes, d.ref)
		}
	}

	if len(sets) == 0 && len(deletes) == 0 {
		return nil
	}

	// The consolidation plan is idempotent, so it retries as a unit.
	return withRetry(ctx, "migrate_likes", storeRetryAttempts, func(ctx context.Context) error {
		bw := s.firestoreClient.BulkWriter(ctx)
		jobs := make([]*firestore.BulkWriterJob, 0, len(sets)+len(deletes))

		for _, w := range sets {
			job, err := bw.Set(w.ref, w.rec)
			if err != nil {
				return fmt.Errorf("failed to queue canonical like: %w", err)
			}
			jobs = append(jobs, job)
		}
		for _, ref := range deletes {
			job, err := bw.Delete(ref)
			if err != nil {
				return fmt.Errorf("failed to queue legacy like delete: %w", err)
			}
			jobs = append(jobs, job)
		}

		bw.End()
		return awaitBulkJobs(jobs)
	})
}

// SubscribeCounters streams counter snapshots for a media key, backed by
// Firestore snapshot listeners. The returned stop function ends the stream and
// releases the listeners; the channel closes once both listeners exit.
func (s *EngagementService) SubscribeCounters(ctx context.Context, mediaKey string) (<-chan models.CounterSnapshot, func()) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan models.CounterSnapshot, 4)

	var mu sync.Mutex
	current := models.CounterSnapshot{MediaKey: mediaKey}

	emit := func(update func(*models.CounterSnapshot)) {
		mu.Lock()
		update(&current)
		current.At = time.Now()
		snap := current
		mu.Unlock()

		select {
		case out <- snap:
		case <-ctx.Done():
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		it := s.firestoreClient.Collection(playsCollection).Doc(mediaKey).Snapshots(ctx)
		defer it.Stop()
		for {
			doc, err := it.Next()
			if err != nil {
				return
			}
			var count int64
			if doc.Exists() {
				var rec models.PlayRecord
				if err := doc.DataTo(&rec); err == nil {
					count = rec.PlayCount
				}
			}
			emit(func(c *models.CounterSnapshot) { c.PlayCount = count })
		}
	}()

	go func() {
		defer wg.Done()
		it := s.firestoreClient.Collection(likesCollection).Doc(mediaKey).Snapshots(ctx)
		defer it.Stop()
		for {
			doc, err := it.Next()
			if err != nil {
				return
			}
			var count int64
			if doc.Exists() {
				var rec models.LikeRecord
				if err := doc.DataTo(&rec); err == nil {
					count = rec.LikeCount
				}
			}
			emit(func(c *models.CounterSnapshot) { c.LikeCount = count })
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, cancel
}

// Fingerprint exposes the media key for a token, for callers that subscribe to
// counters or log by content identity.
func (s *EngagementService) Fingerprint(nft models.NormalizedNFT) string {
	return s.fingerprints.Fingerprint(nft)
}

func userLikeDocID(userID, mediaKey string) string {
	return userID + "_" + mediaKey
}

func topSnapshotDocID(rank int) string {
	return fmt.Sprintf("rank_%03d", rank)
}

func displayAudioURL(nft models.NormalizedNFT) string {
	if nft.Audio != "" {
		return nft.Audio
	}
	return nft.AnimationURL
}
