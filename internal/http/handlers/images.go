package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"shaggydog/internal/domain"
	"shaggydog/internal/imagegen"
	"shaggydog/internal/middleware"
	provider "shaggydog/internal/providers/image"
	"shaggydog/internal/storage"
	"shaggydog/pkg/zip"
)

const (
	uploadField     = "image"
	timestampLayout = "20060102_150405"
	defaultMaxBytes = 10 << 20
)

var allowedExtensions = map[string]bool{"png": true, "jpg": true, "jpeg": true, "gif": true}

// archiveStages is the order of entries in a set's zip download.
var archiveStages = []domain.Stage{
	domain.StageOriginal,
	domain.StageDogHead,
	domain.StageTransition1,
	domain.StageFinal,
	domain.StageFullDog,
}

type uploadResponse struct {
	Status  string `json:"status"`
	ImageID string `json:"image_id"`
	Breed   string `json:"breed"`
}

type imageSetDTO struct {
	ID        string            `json:"id"`
	Breed     string            `json:"breed"`
	RunState  string            `json:"run_state"`
	Images    map[string]string `json:"images"`
	CreatedAt time.Time         `json:"created_at"`
}

func (a *App) maxUploadBytes() int64 {
	if a.Config != nil && a.Config.MaxUploadBytes > 0 {
		return a.Config.MaxUploadBytes
	}
	return defaultMaxBytes
}

// UploadImage stores the portrait, classifies it and starts the
// transformation in the background.
func (a *App) UploadImage(w http.ResponseWriter, r *http.Request) {
	owner := a.currentOwnerID(r)
	if owner == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	limit := a.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "file exceeds upload limit")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "no file provided")
		return
	}
	defer func() {
		_ = file.Close()
	}()
	if header.Filename == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "no file selected")
		return
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(header.Filename)), ".")
	if !allowedExtensions[ext] {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid file type")
		return
	}
	if header.Size > limit {
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", "file exceeds upload limit")
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read file")
		return
	}
	if int64(len(data)) > limit {
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", "file exceeds upload limit")
		return
	}
	if len(data) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "empty file")
		return
	}

	key := domain.ArtifactName(safeOwner(owner), a.now().Format(timestampLayout), domain.StageOriginal, ext)
	if _, err := a.Store.Create(r.Context(), key, data); err != nil {
		if errors.Is(err, storage.ErrExists) {
			a.error(w, http.StatusConflict, "conflict", "an upload is already being processed, retry in a second")
			return
		}
		a.log(r).Error().Err(err).Str("key", key).Msg("store upload failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store upload")
		return
	}

	breed := a.Classifier.Classify(r.Context(), data, provider.MIMEFromPath(key))
	id, err := a.Runner.StartTransformation(r.Context(), domain.GenerationRequest{
		SourcePath:  key,
		BreedLabel:  breed,
		OwnerID:     owner,
		Correlation: middleware.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		a.log(r).Error().Err(err).Str("key", key).Msg("start transformation failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to start transformation")
		return
	}
	a.log(r).Info().Str("image_set_id", id).Str("breed", breed).Msg("upload accepted")
	a.json(w, http.StatusAccepted, uploadResponse{Status: imagegen.StatusProcessing, ImageID: id, Breed: breed})
}

// ImageStatus reports complete with four URLs, or processing with the run
// state.
func (a *App) ImageStatus(w http.ResponseWriter, r *http.Request) {
	owner := a.currentOwnerID(r)
	if owner == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "image set not found")
		return
	}
	st, err := a.Runner.CheckStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "image set not found")
			return
		}
		a.log(r).Error().Err(err).Str("image_set_id", id).Msg("check status failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load status")
		return
	}
	if st.OwnerID != owner {
		a.error(w, http.StatusNotFound, "not_found", "image set not found")
		return
	}
	if st.State != imagegen.StatusComplete {
		body := map[string]any{"status": st.State, "run_state": st.RunState}
		if st.Detail != "" {
			body["detail"] = st.Detail
		}
		a.json(w, http.StatusOK, body)
		return
	}
	images := make(map[string]string, len(st.Images))
	for stage, key := range st.Images {
		images[string(stage)] = a.publicURL(key)
	}
	a.json(w, http.StatusOK, map[string]any{"status": st.State, "run_state": st.RunState, "images": images})
}

// ListImages returns the owner's image sets, newest first.
func (a *App) ListImages(w http.ResponseWriter, r *http.Request) {
	owner := a.currentOwnerID(r)
	if owner == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sets, err := a.Repo.ListByOwner(r.Context(), owner, limit)
	if err != nil {
		a.log(r).Error().Err(err).Msg("list image sets failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list image sets")
		return
	}
	items := make([]imageSetDTO, 0, len(sets))
	for _, set := range sets {
		dto := imageSetDTO{
			ID:        set.ID,
			Breed:     set.BreedLabel,
			RunState:  string(set.RunState),
			Images:    map[string]string{},
			CreatedAt: set.CreatedAt,
		}
		if set.OriginalPath != "" {
			dto.Images[string(domain.StageOriginal)] = a.publicURL(set.OriginalPath)
		}
		for stage, key := range set.StagePaths {
			dto.Images[string(stage)] = a.publicURL(key)
		}
		items = append(items, dto)
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// ImageArchive zips every stage of a set present on disk.
func (a *App) ImageArchive(w http.ResponseWriter, r *http.Request) {
	owner := a.currentOwnerID(r)
	if owner == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "image set not found")
		return
	}
	set, err := a.Repo.Get(r.Context(), id)
	if err != nil || set.OwnerID != owner {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			a.log(r).Error().Err(err).Str("image_set_id", id).Msg("load image set failed")
		}
		a.error(w, http.StatusNotFound, "not_found", "image set not found")
		return
	}
	var assets []zip.Asset
	for _, stage := range archiveStages {
		key := domain.StageKey(set.OriginalPath, stage)
		if !a.Store.Exists(key) {
			continue
		}
		data, err := a.Store.Read(key)
		if err != nil {
			a.log(r).Warn().Err(err).Str("key", key).Msg("read artifact failed")
			continue
		}
		assets = append(assets, zip.Asset{Filename: path.Base(key), MIME: provider.MIMEFromPath(key), Data: data})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no images available yet")
		return
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.log(r).Error().Err(err).Str("image_set_id", id).Msg("build archive failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=shaggydog-%s.zip", id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// ServeArtifact serves a file from the upload directory by bare name.
func (a *App) ServeArtifact(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") || !a.Store.Exists(name) {
		a.error(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	full, err := a.Store.Path(name)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, full)
}

// safeOwner keeps owner ids usable as file name prefixes.
func safeOwner(owner string) string {
	var b strings.Builder
	for _, r := range owner {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
