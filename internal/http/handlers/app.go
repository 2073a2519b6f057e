package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"shaggydog/internal/domain"
	"shaggydog/internal/imagegen"
	"shaggydog/internal/infra"
	"shaggydog/internal/middleware"
)

// Transformer starts background runs and reports their readiness.
type Transformer interface {
	StartTransformation(ctx context.Context, req domain.GenerationRequest) (string, error)
	CheckStatus(ctx context.Context, id string) (imagegen.Status, error)
	InFlight() int64
}

// Classifier picks a breed for an uploaded portrait.
type Classifier interface {
	Classify(ctx context.Context, data []byte, mime string) string
}

// ArtifactStore reads and writes files in the upload directory.
type ArtifactStore interface {
	Create(ctx context.Context, key string, data []byte) (string, error)
	Read(key string) ([]byte, error)
	Exists(key string) bool
	Path(key string) (string, error)
}

type App struct {
	Config     *infra.Config
	Logger     zerolog.Logger
	Repo       domain.ImageSetRepository
	Store      ArtifactStore
	Runner     Transformer
	Classifier Classifier
	Now        func() time.Time
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}

func (a *App) currentOwnerID(r *http.Request) string {
	return strings.TrimSpace(middleware.OwnerIDFromContext(r.Context()))
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) publicURL(key string) string {
	base := ""
	if a.Config != nil {
		base = strings.TrimRight(a.Config.PublicBaseURL, "/")
	}
	return base + "/images/" + key
}
