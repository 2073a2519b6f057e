package domain

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Stage names an artifact slot within an ImageSet.
type Stage string

const (
	StageOriginal    Stage = "original"
	StageDogHead     Stage = "dog_head"
	StageTransition1 Stage = "transition1"
	StageFinal       Stage = "final"
	StageFullDog     Stage = "full_dog"
)

// DerivedStages are the branch outputs produced after the dog head.
var DerivedStages = []Stage{StageTransition1, StageFinal, StageFullDog}

// ReadinessStages must all exist on disk before a set is reported complete.
var ReadinessStages = []Stage{StageOriginal, StageTransition1, StageFinal, StageFullDog}

// RunState tracks a transformation run.
type RunState string

const (
	RunStateStarted         RunState = "STARTED"
	RunStateHeadGenerated   RunState = "HEAD_GENERATED"
	RunStateBranchesRunning RunState = "BRANCHES_RUNNING"
	RunStatePartial         RunState = "PARTIAL"
	RunStateComplete        RunState = "COMPLETE"
)

// Terminal reports whether no further transitions follow s.
func (s RunState) Terminal() bool {
	return s == RunStatePartial || s == RunStateComplete
}

// ImageSet is the persisted record of one upload and its derived stages.
type ImageSet struct {
	ID           string
	OwnerID      string
	OriginalPath string
	BreedLabel   string
	StagePaths   map[Stage]string
	RunState     RunState
	Correlation  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GenerationRequest carries the inputs of a single orchestration run.
type GenerationRequest struct {
	ImageSetID  string
	SourcePath  string
	BreedLabel  string
	OwnerID     string
	Correlation string
}

// GenerationResult is the settled outcome of one branch.
type GenerationResult struct {
	Stage  Stage
	Path   string
	Method string
	Err    error
}

// OK reports whether the branch produced a file.
func (r GenerationResult) OK() bool {
	return r.Path != "" && r.Err == nil
}

// ArtifactName returns the file name used for a stage of an upload, e.g.
// "42_20240102_150405_final.png". The original keeps its uploaded extension.
func ArtifactName(ownerID, timestamp string, stage Stage, ext string) string {
	if stage == StageOriginal {
		return fmt.Sprintf("%s_%s_original.%s", ownerID, timestamp, ext)
	}
	return fmt.Sprintf("%s_%s_%s.png", ownerID, timestamp, stage)
}

// ArtifactBase strips the "_original.<ext>" suffix from an original's file
// name, yielding the "{owner}_{timestamp}" prefix shared by every stage.
func ArtifactBase(originalPath string) (string, bool) {
	name := filepath.Base(originalPath)
	ext := filepath.Ext(name)
	const suffix = "_original"
	stem := name[:len(name)-len(ext)]
	if len(stem) <= len(suffix) || stem[len(stem)-len(suffix):] != suffix {
		return "", false
	}
	return stem[:len(stem)-len(suffix)], true
}

// StageKey derives the storage key of a stage from the original's key. The
// original itself maps to its own key.
func StageKey(originalKey string, stage Stage) string {
	if stage == StageOriginal {
		return originalKey
	}
	dir, name := path.Split(filepath.ToSlash(originalKey))
	base, ok := ArtifactBase(name)
	if !ok {
		base = strings.TrimSuffix(name, path.Ext(name))
	}
	return dir + base + "_" + string(stage) + ".png"
}
