package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matchmate/matchmate-go/internal/model"
	"github.com/matchmate/matchmate-go/internal/repository"
)

const (
	maxDisplayNameLength = 100
	maxBioLength         = 500
	maxFieldLength       = 100
	maxListItems         = 20
	maxListItemLength    = 50
	minAge               = 18
	dateLayout           = "2006-01-02"
)

var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrDisplayNameRequired  = errors.New("display_name cannot be empty")
	ErrDisplayNameTooLong   = errors.New("display_name must be at most 100 characters")
	ErrInvalidGender        = errors.New("gender must be one of male, female, other")
	ErrInvalidDateOfBirth   = errors.New("date_of_birth must be YYYY-MM-DD")
	ErrUnderage             = errors.New("members must be at least 18 years old")
	ErrFieldTooLong         = errors.New("profile fields must be at most 100 characters")
	ErrBioTooLong           = errors.New("bio must be at most 500 characters")
	ErrTooManyItems         = errors.New("interests and languages are limited to 20 entries")
	ErrItemTooLong          = errors.New("interests and languages entries must be at most 50 characters")
	ErrNoPhotos             = errors.New("at least one photo is required")
	ErrTooManyPhotos        = errors.New("photo limit reached")
	ErrPhotoTooLarge        = errors.New("photo is too large")
	ErrUnsupportedPhotoType = errors.New("photos must be JPEG, PNG or WebP")
	ErrPhotoNotFound        = errors.New("photo not found")
)

// photoTypes maps sniffed content types to stored file extensions.
var photoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// PhotoUpload is one uploaded file, already read into memory.
type PhotoUpload struct {
	Filename string
	Data     []byte
}

// ProfileOptions configures photo storage for a ProfileService.
type ProfileOptions struct {
	UploadDir     string
	PublicURL     string
	MaxPhotos     int
	MaxPhotoBytes int64
}

// ProfileService handles profile editing and photo uploads.
type ProfileService struct {
	profiles *repository.ProfileRepository
	photos   *repository.PhotoRepository
	opts     ProfileOptions
	now      func() time.Time
}

// NewProfileService creates a new ProfileService.
func NewProfileService(profiles *repository.ProfileRepository, photos *repository.PhotoRepository, opts ProfileOptions) *ProfileService {
	if opts.MaxPhotos <= 0 {
		opts.MaxPhotos = 6
	}
	if opts.MaxPhotoBytes <= 0 {
		opts.MaxPhotoBytes = 5 << 20
	}
	return &ProfileService{profiles: profiles, photos: photos, opts: opts, now: time.Now}
}

// Get returns a profile with its photos.
func (s *ProfileService) Get(ctx context.Context, userID int64) (model.Profile, error) {
	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return model.Profile{}, ErrProfileNotFound
		}
		return model.Profile{}, err
	}

	photos, err := s.photos.ListByUser(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	for i := range photos {
		photos[i].URL = photoURL(s.opts.PublicURL, photos[i].Filename)
	}
	p.Photos = photos

	return *p, nil
}

// Update applies a partial update and returns the updated profile.
func (s *ProfileService) Update(ctx context.Context, userID int64, req model.ProfileUpdateRequest) (model.Profile, error) {
	upd, err := s.validateUpdate(req)
	if err != nil {
		return model.Profile{}, err
	}

	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return model.Profile{}, ErrProfileNotFound
		}
		return model.Profile{}, err
	}

	upd.apply(p)

	if err := s.profiles.Update(ctx, p); err != nil {
		return model.Profile{}, err
	}
	return s.Get(ctx, userID)
}

// validatedUpdate is a ProfileUpdateRequest with normalized values.
type validatedUpdate struct {
	req         model.ProfileUpdateRequest
	dateOfBirth *time.Time
	interests   []string
	languages   []string
}

func (s *ProfileService) validateUpdate(req model.ProfileUpdateRequest) (validatedUpdate, error) {
	upd := validatedUpdate{req: req}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return upd, ErrDisplayNameRequired
		}
		if len([]rune(name)) > maxDisplayNameLength {
			return upd, ErrDisplayNameTooLong
		}
		upd.req.DisplayName = &name
	}

	if req.Gender != nil {
		g := strings.ToLower(strings.TrimSpace(*req.Gender))
		switch g {
		case model.GenderMale, model.GenderFemale, model.GenderOther:
		default:
			return upd, ErrInvalidGender
		}
		upd.req.Gender = &g
	}

	if req.DateOfBirth != nil {
		dob, err := time.Parse(dateLayout, strings.TrimSpace(*req.DateOfBirth))
		if err != nil {
			return upd, ErrInvalidDateOfBirth
		}
		if (model.Profile{DateOfBirth: &dob}).Age(s.now()) < minAge {
			return upd, ErrUnderage
		}
		upd.dateOfBirth = &dob
	}

	for _, f := range []*string{req.City, req.Religion, req.MotherTongue, req.Education, req.Profession} {
		if f != nil && len([]rune(strings.TrimSpace(*f))) > maxFieldLength {
			return upd, ErrFieldTooLong
		}
	}

	if req.Bio != nil && len([]rune(*req.Bio)) > maxBioLength {
		return upd, ErrBioTooLong
	}

	var err error
	if req.Interests != nil {
		if upd.interests, err = normalizeList(*req.Interests); err != nil {
			return upd, err
		}
	}
	if req.Languages != nil {
		if upd.languages, err = normalizeList(*req.Languages); err != nil {
			return upd, err
		}
	}

	return upd, nil
}

func (u validatedUpdate) apply(p *model.Profile) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&p.DisplayName, u.req.DisplayName)
	set(&p.Gender, u.req.Gender)
	set(&p.City, u.req.City)
	set(&p.Religion, u.req.Religion)
	set(&p.MotherTongue, u.req.MotherTongue)
	set(&p.Education, u.req.Education)
	set(&p.Profession, u.req.Profession)
	set(&p.Bio, u.req.Bio)

	if u.dateOfBirth != nil {
		p.DateOfBirth = u.dateOfBirth
	}
	if u.req.Interests != nil {
		p.Interests = u.interests
	}
	if u.req.Languages != nil {
		p.Languages = u.languages
	}
}

// normalizeList trims, lower-cases and de-duplicates entries, dropping blanks.
func normalizeList(items []string) ([]string, error) {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		v := strings.ToLower(strings.TrimSpace(item))
		if v == "" || seen[v] {
			continue
		}
		if len([]rune(v)) > maxListItemLength {
			return nil, ErrItemTooLong
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) > maxListItems {
		return nil, ErrTooManyItems
	}
	return out, nil
}

// UploadPhotos stores new photos for a user and returns them.
func (s *ProfileService) UploadPhotos(ctx context.Context, userID int64, uploads []PhotoUpload) ([]model.Photo, error) {
	if len(uploads) == 0 {
		return nil, ErrNoPhotos
	}
	if len(uploads) > s.opts.MaxPhotos {
		return nil, ErrTooManyPhotos
	}

	exts := make([]string, len(uploads))
	for i, u := range uploads {
		if int64(len(u.Data)) > s.opts.MaxPhotoBytes {
			return nil, ErrPhotoTooLarge
		}
		ext, ok := photoTypes[http.DetectContentType(u.Data)]
		if !ok {
			return nil, ErrUnsupportedPhotoType
		}
		exts[i] = ext
	}

	count, err := s.photos.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count+len(uploads) > s.opts.MaxPhotos {
		return nil, ErrTooManyPhotos
	}

	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}

	saved := make([]model.Photo, 0, len(uploads))
	for i, u := range uploads {
		id := uuid.NewString()
		photo := model.Photo{
			ID:        id,
			UserID:    userID,
			Filename:  id + exts[i],
			CreatedAt: s.now().UTC(),
		}

		path := filepath.Join(s.opts.UploadDir, photo.Filename)
		if err := os.WriteFile(path, u.Data, 0o644); err != nil {
			return saved, fmt.Errorf("writing photo: %w", err)
		}
		if err := s.photos.Create(ctx, &photo); err != nil {
			os.Remove(path)
			return saved, err
		}

		photo.URL = photoURL(s.opts.PublicURL, photo.Filename)
		saved = append(saved, photo)
	}

	return saved, nil
}

// DeletePhoto removes a photo and its file.
func (s *ProfileService) DeletePhoto(ctx context.Context, userID int64, photoID string) error {
	if _, err := uuid.Parse(photoID); err != nil {
		return ErrPhotoNotFound
	}

	filename, err := s.photos.Delete(ctx, userID, photoID)
	if err != nil {
		if errors.Is(err, repository.ErrPhotoNotFound) {
			return ErrPhotoNotFound
		}
		return err
	}

	if err := os.Remove(filepath.Join(s.opts.UploadDir, filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("removing photo file failed", "file", filename, "error", err)
	}
	return nil
}

func photoURL(base, filename string) string {
	if filename == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/uploads/" + filename
}

func toCard(rec model.CardRecord, publicURL string, now time.Time) model.ProfileCard {
	return model.ProfileCard{
		UserID:      rec.UserID,
		DisplayName: rec.DisplayName,
		Age:         model.Profile{DateOfBirth: rec.DateOfBirth}.Age(now),
		City:        rec.City,
		Profession:  rec.Profession,
		PhotoURL:    photoURL(publicURL, rec.PhotoFilename),
	}
}
