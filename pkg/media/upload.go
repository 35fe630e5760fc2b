// Package media manages uploaded files: the upload and delete flows over
// blob storage plus metadata documents, the gallery/select/input manager
// state, value bindings for form fields and the single-file uploader.
package media

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// DefaultRoot is both the blob folder and the metadata collection.
const DefaultRoot = "uploads"

// timeLayout keeps nine fractional digits so stored times sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Upload is the metadata document of a stored file.
type Upload struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	TimeCreated time.Time `json:"timeCreated"`
	URL         string    `json:"url"`
	UserID      string    `json:"userId,omitempty"`
	IsPublic    bool      `json:"isPublic"`
	Path        string    `json:"path,omitempty"`
}

// Record converts u into a store document. The id is not part of it.
func (u Upload) Record() model.Record {
	rec := model.Record{
		"name":        u.Name,
		"size":        u.Size,
		"contentType": u.ContentType,
		"url":         u.URL,
		"isPublic":    u.IsPublic,
	}
	if !u.TimeCreated.IsZero() {
		rec["timeCreated"] = u.TimeCreated.UTC().Format(timeLayout)
	}
	if u.UserID != "" {
		rec["userId"] = u.UserID
	}
	if u.Path != "" {
		rec["path"] = u.Path
	}
	return rec
}

// Prop returns the value of a metadata property by its JSON name.
func (u Upload) Prop(name string) any {
	switch name {
	case "id":
		return u.ID
	case "name":
		return u.Name
	case "size":
		return u.Size
	case "contentType":
		return u.ContentType
	case "timeCreated":
		return u.TimeCreated
	case "url":
		return u.URL
	case "userId":
		return u.UserID
	case "isPublic":
		return u.IsPublic
	case "path":
		return u.Path
	}
	return nil
}

// OwnedBy reports whether u was uploaded by userID. An empty userID owns
// the anonymous uploads.
func (u Upload) OwnedBy(userID string) bool {
	return u.UserID == userID
}

// FromRecord reads a store document. Unknown keys are ignored.
func FromRecord(rec model.Record) Upload {
	u := Upload{
		ID:          model.Stringify(rec["id"]),
		Name:        model.Stringify(rec["name"]),
		ContentType: model.Stringify(rec["contentType"]),
		URL:         model.Stringify(rec["url"]),
		UserID:      model.Stringify(rec["userId"]),
		Path:        model.Stringify(rec["path"]),
	}
	switch v := rec["size"].(type) {
	case int64:
		u.Size = v
	case int:
		u.Size = int64(v)
	case float64:
		u.Size = int64(v)
	case string:
		u.Size, _ = strconv.ParseInt(v, 10, 64)
	}
	switch v := rec["isPublic"].(type) {
	case bool:
		u.IsPublic = v
	case string:
		u.IsPublic, _ = strconv.ParseBool(v)
	}
	switch v := rec["timeCreated"].(type) {
	case time.Time:
		u.TimeCreated = v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			u.TimeCreated = t
		}
	}
	return u
}

// FromRecords converts a listing.
func FromRecords(recs []model.Record) []Upload {
	out := make([]Upload, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecord(rec))
	}
	return out
}

// MergeLists merges two listings by id: entries of b missing from a come
// first, followed by a.
func MergeLists(a, b []Upload) []Upload {
	seen := make(map[string]struct{}, len(a))
	for _, u := range a {
		seen[u.ID] = struct{}{}
	}
	out := make([]Upload, 0, len(a)+len(b))
	for _, u := range b {
		if _, ok := seen[u.ID]; !ok {
			out = append(out, u)
		}
	}
	return append(out, a...)
}

// HumanFileSize formats bytes with SI (1000) or IEC (1024) units and dp
// decimals, e.g. 1536 -> "1.5 KiB".
func HumanFileSize(bytes int64, si bool, dp int) string {
	thresh := 1024.0
	units := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB", "ZiB", "YiB"}
	if si {
		thresh = 1000
		units = []string{"kB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}
	}
	if math.Abs(float64(bytes)) < thresh {
		return fmt.Sprintf("%d B", bytes)
	}
	if dp < 0 {
		dp = 0
	}
	r := math.Pow(10, float64(dp))
	value := float64(bytes)
	u := -1
	for {
		value /= thresh
		u++
		if math.Round(math.Abs(value)*r)/r < thresh || u >= len(units)-1 {
			break
		}
	}
	return strconv.FormatFloat(value, 'f', dp, 64) + " " + units[u]
}

// LastPart selects the final segment in GetStringPart.
const LastPart = -1

// GetStringPart splits s on sep ("/" when empty) and returns segment part,
// or the last one for LastPart. s is returned unchanged when the segment
// does not exist.
func GetStringPart(s string, part int, sep string) string {
	if sep == "" {
		sep = "/"
	}
	parts := strings.Split(s, sep)
	if part == LastPart {
		return parts[len(parts)-1]
	}
	if part >= 0 && part < len(parts) {
		return parts[part]
	}
	return s
}
