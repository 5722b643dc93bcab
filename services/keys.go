package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	zipSuffix    = ".zip"
	markerSuffix = "_metadata.json"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

func SanitizeFileName(name string) string {
	return unsafeKeyChars.ReplaceAllString(name, "_")
}

// ObjectKey is {prefix}{epochMillis}_{sanitized name}.
func ObjectKey(prefix, fileName string, now time.Time) string {
	return fmt.Sprintf("%s%d_%s", prefix, now.UnixMilli(), SanitizeFileName(fileName))
}

// MarkerKey swaps the first ".zip" of an object key for the marker suffix.
// The match ignores case so an upper-case extension never yields a marker
// key equal to the object key.
func MarkerKey(objectKey string) string {
	i := strings.Index(strings.ToLower(objectKey), zipSuffix)
	if i < 0 {
		return objectKey + markerSuffix
	}
	return objectKey[:i] + markerSuffix + objectKey[i+len(zipSuffix):]
}

func randomToken(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

// NewUserID follows the user_<millis>_<token> shape the processing side
// already stores.
func NewUserID(now time.Time) string {
	return fmt.Sprintf("user_%d_%s", now.UnixMilli(), randomToken(9))
}

// NewSlideID is base36 time plus a random token. Unique enough for one
// interactive deck, not a global identifier.
func NewSlideID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 36) + randomToken(10)
}
