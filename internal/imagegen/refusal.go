package imagegen

import (
	"errors"
	"strings"
)

var (
	// ErrRefused marks a vision reply that declined the request.
	ErrRefused = errors.New("imagegen: provider refused the request")
	// ErrHeadGeneration is the only run-fatal failure.
	ErrHeadGeneration = errors.New("imagegen: dog head generation failed")
)

var refusalMarkers = []string{"sorry", "can't", "cannot"}

// IsRefusal reports whether a model reply reads like a refusal.
func IsRefusal(reply string) bool {
	return containsAny(reply, refusalMarkers...)
}

func containsAny(text string, markers ...string) bool {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
