// Package blob names stored snapshot images. The stores live in subpackages.
package blob

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidMissionID is returned for ids that cannot be used as a key segment.
var ErrInvalidMissionID = errors.New("invalid mission id for blob key")

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// Extension returns the file extension for a content type, ".bin" when unknown.
func Extension(contentType string) string {
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	return ".bin"
}

// ObjectKey builds "<prefix><missionID>/<utc timestamp>-<uuid><ext>".
func ObjectKey(prefix, missionID, contentType string, now time.Time) (string, error) {
	if missionID == "" || missionID == "." || missionID == ".." || strings.ContainsAny(missionID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMissionID, missionID)
	}
	name := now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString() + Extension(contentType)
	return prefix + path.Join(missionID, name), nil
}

// PublicURL joins a public base URL and an object key.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
