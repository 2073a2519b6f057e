// Package imagegen turns an uploaded portrait into a dog head and three
// derived stages. Every provider failure inside a branch is soft: the branch
// walks its fallback tiers and settles with or without a file.
package imagegen

import (
	"context"
	"io"

	provider "shaggydog/internal/providers/image"
)

type (
	ImageOutput  = provider.Output
	VisionClient = provider.VisionClient
	ImageClient  = provider.Generator
	EditClient   = provider.Editor
	SwapClient   = provider.Swapper
)

// ArtifactStore is the slice of storage.FileStore the pipeline needs. Keys
// are relative to the upload directory.
type ArtifactStore interface {
	WriteFrom(ctx context.Context, key string, r io.Reader) (string, error)
	Read(key string) ([]byte, error)
	Exists(key string) bool
}

// Downloader copies a remote image into the store under key.
type Downloader interface {
	Fetch(ctx context.Context, url, key string) (string, error)
}

type credentialed interface {
	HasCredentials() bool
}

func hasCredentials(v any) bool {
	if c, ok := v.(credentialed); ok {
		return c.HasCredentials()
	}
	return v != nil
}

func inline(store ArtifactStore, key string) (provider.InlineImage, error) {
	data, err := store.Read(key)
	if err != nil {
		return provider.InlineImage{}, err
	}
	return provider.InlineImage{Filename: key, MIME: provider.MIMEFromPath(key), Data: data}, nil
}
