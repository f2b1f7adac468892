package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matchmate/matchmate-go/internal/model"
	"github.com/matchmate/matchmate-go/internal/service"
)

// ProfileHandler handles HTTP requests for profiles and photos.
type ProfileHandler struct {
	service   *service.ProfileService
	maxUpload int64
}

// NewProfileHandler creates a new ProfileHandler. maxUpload bounds the size
// of a whole multipart upload request.
func NewProfileHandler(svc *service.ProfileService, maxUpload int64) *ProfileHandler {
	return &ProfileHandler{service: svc, maxUpload: maxUpload}
}

// HandleGetProfile handles GET /api/v1/profile requests.
func (h *ProfileHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	h.writeProfile(w, r, userID)
}

// HandleViewProfile handles GET /api/v1/profiles/{user_id} requests.
func (h *ProfileHandler) HandleViewProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	otherID, ok := idParam(w, r, "user_id")
	if !ok {
		return
	}
	h.writeProfile(w, r, otherID)
}

func (h *ProfileHandler) writeProfile(w http.ResponseWriter, r *http.Request, userID int64) {
	p, err := h.service.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		internalError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, p)
}

// HandleUpdateProfile handles PUT /api/v1/profile requests.
func (h *ProfileHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.ProfileUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.Update(r.Context(), userID, req)
	if err != nil {
		switch {
		case isProfileValidationError(err):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrProfileNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			internalError(w, r, err)
		}
		return
	}

	writeData(w, http.StatusOK, p)
}

// HandleUploadPhotos handles POST /api/v1/profile/photos requests. Files are
// read from the "photo" and "photos" form fields.
func (h *ProfileHandler) HandleUploadPhotos(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File["photo"]...)
	headers = append(headers, r.MultipartForm.File["photos"]...)

	uploads := make([]service.PhotoUpload, 0, len(headers))
	for _, fh := range headers {
		data, err := readFormFile(fh)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read uploaded file")
			return
		}
		uploads = append(uploads, service.PhotoUpload{Filename: fh.Filename, Data: data})
	}

	photos, err := h.service.UploadPhotos(r.Context(), userID, uploads)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPhotoTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, service.ErrNoPhotos),
			errors.Is(err, service.ErrTooManyPhotos),
			errors.Is(err, service.ErrUnsupportedPhotoType):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			internalError(w, r, err)
		}
		return
	}

	writeData(w, http.StatusCreated, photos)
}

// HandleDeletePhoto handles DELETE /api/v1/profile/photos/{photo_id} requests.
func (h *ProfileHandler) HandleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	err := h.service.DeletePhoto(r.Context(), userID, chi.URLParam(r, "photo_id"))
	if err != nil {
		if errors.Is(err, service.ErrPhotoNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		internalError(w, r, err)
		return
	}

	writeMessage(w, "photo deleted")
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func isProfileValidationError(err error) bool {
	return errors.Is(err, service.ErrDisplayNameRequired) ||
		errors.Is(err, service.ErrDisplayNameTooLong) ||
		errors.Is(err, service.ErrInvalidGender) ||
		errors.Is(err, service.ErrInvalidDateOfBirth) ||
		errors.Is(err, service.ErrUnderage) ||
		errors.Is(err, service.ErrFieldTooLong) ||
		errors.Is(err, service.ErrBioTooLong) ||
		errors.Is(err, service.ErrTooManyItems) ||
		errors.Is(err, service.ErrItemTooLong)
}
