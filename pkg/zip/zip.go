// Package zip bundles stored artifacts into a single download.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"time"
)

type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// archiveEpoch pins entry timestamps so identical inputs produce identical
// archives.
var archiveEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ArchiveAssets writes assets in order. Image formats are already
// compressed and are stored as-is; duplicate names are suffixed.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]int, len(assets))
	for _, asset := range assets {
		name := asset.Filename
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%d-%s", n, name)
		}
		seen[asset.Filename]++
		method := zip.Deflate
		if strings.HasPrefix(asset.MIME, "image/") {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: archiveEpoch})
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}
