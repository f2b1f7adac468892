package service

import (
	"context"
	"errors"
	"time"

	"github.com/matchmate/matchmate-go/internal/model"
	"github.com/matchmate/matchmate-go/internal/repository"
)

const (
	defaultDiscoverLimit = 20
	maxDiscoverLimit     = 50
)

var (
	ErrTargetRequired         = errors.New("target_id is required")
	ErrSelfTarget             = errors.New("cannot target your own profile")
	ErrInvalidDirection       = errors.New("direction must be like or pass")
	ErrUserNotFound           = errors.New("user not found")
	ErrShortlistEntryNotFound = errors.New("shortlist entry not found")
)

// DiscoveryService handles discovery, swipes, matches and the shortlist.
type DiscoveryService struct {
	profiles  *repository.ProfileRepository
	swipes    *repository.SwipeRepository
	shortlist *repository.ShortlistRepository
	publicURL string
	now       func() time.Time
}

// NewDiscoveryService creates a new DiscoveryService.
func NewDiscoveryService(
	profiles *repository.ProfileRepository,
	swipes *repository.SwipeRepository,
	shortlist *repository.ShortlistRepository,
	publicURL string,
) *DiscoveryService {
	return &DiscoveryService{
		profiles:  profiles,
		swipes:    swipes,
		shortlist: shortlist,
		publicURL: publicURL,
		now:       time.Now,
	}
}

// Discover returns up to limit profiles the user has not swiped yet.
func (s *DiscoveryService) Discover(ctx context.Context, userID int64, limit int) ([]model.ProfileCard, error) {
	limit = clampLimit(limit)

	recs, err := s.profiles.Discover(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cards := make([]model.ProfileCard, len(recs))
	for i, r := range recs {
		cards[i] = toCard(r, s.publicURL, now)
	}
	return cards, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultDiscoverLimit
	}
	if limit > maxDiscoverLimit {
		return maxDiscoverLimit
	}
	return limit
}

// Swipe records a like or pass and reports whether a like is mutual.
func (s *DiscoveryService) Swipe(ctx context.Context, userID int64, req model.SwipeRequest) (model.SwipeResponse, error) {
	if err := validateTarget(userID, req.TargetID); err != nil {
		return model.SwipeResponse{}, err
	}
	if req.Direction != model.SwipeLike && req.Direction != model.SwipePass {
		return model.SwipeResponse{}, ErrInvalidDirection
	}

	if err := s.swipes.Upsert(ctx, userID, req.TargetID, req.Direction); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.SwipeResponse{}, ErrUserNotFound
		}
		return model.SwipeResponse{}, err
	}

	if req.Direction == model.SwipePass {
		return model.SwipeResponse{}, nil
	}

	matched, err := s.swipes.Likes(ctx, req.TargetID, userID)
	if err != nil {
		return model.SwipeResponse{}, err
	}
	return model.SwipeResponse{Matched: matched}, nil
}

// Matches lists the user's mutual likes.
func (s *DiscoveryService) Matches(ctx context.Context, userID int64) ([]model.Match, error) {
	recs, err := s.swipes.Matches(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	matches := make([]model.Match, len(recs))
	for i, r := range recs {
		matches[i] = model.Match{Profile: toCard(r, s.publicURL, now), MatchedAt: r.At}
	}
	return matches, nil
}

// Shortlist lists shortlisted members.
func (s *DiscoveryService) Shortlist(ctx context.Context, userID int64) ([]model.ShortlistEntry, error) {
	recs, err := s.shortlist.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entries := make([]model.ShortlistEntry, len(recs))
	for i, r := range recs {
		entries[i] = model.ShortlistEntry{Profile: toCard(r, s.publicURL, now), AddedAt: r.At}
	}
	return entries, nil
}

// AddToShortlist shortlists a member. Adding twice is not an error.
func (s *DiscoveryService) AddToShortlist(ctx context.Context, userID int64, req model.ShortlistRequest) error {
	if err := validateTarget(userID, req.TargetID); err != nil {
		return err
	}

	err := s.shortlist.Add(ctx, userID, req.TargetID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}

// RemoveFromShortlist removes a member from the shortlist.
func (s *DiscoveryService) RemoveFromShortlist(ctx context.Context, userID, targetID int64) error {
	if targetID <= 0 {
		return ErrTargetRequired
	}

	err := s.shortlist.Remove(ctx, userID, targetID)
	if errors.Is(err, repository.ErrShortlistEntryNotFound) {
		return ErrShortlistEntryNotFound
	}
	return err
}

// CommonInterests compares the user's profile with another member's.
func (s *DiscoveryService) CommonInterests(ctx context.Context, userID, otherID int64) (model.CommonInterests, error) {
	if err := validateTarget(userID, otherID); err != nil {
		return model.CommonInterests{}, err
	}

	mine, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return model.CommonInterests{}, ErrProfileNotFound
		}
		return model.CommonInterests{}, err
	}
	theirs, err := s.profiles.GetByUserID(ctx, otherID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return model.CommonInterests{}, ErrUserNotFound
		}
		return model.CommonInterests{}, err
	}

	return CompareProfiles(*mine, *theirs), nil
}

func validateTarget(userID, targetID int64) error {
	if targetID <= 0 {
		return ErrTargetRequired
	}
	if targetID == userID {
		return ErrSelfTarget
	}
	return nil
}
