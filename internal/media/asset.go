// Package media implements the per-asset migration pipeline: MIME detection,
// compression through an external image tool, object storage upload and
// foreign-keyed record creation.
package media

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Category of a media asset, deciding key extraction and storage layout.
type Category string

const (
	CategoryProfile Category = "profile"
	CategoryService Category = "service"
	CategoryChat    Category = "chat"
)

// sniffLen is the number of leading bytes read for content-type detection.
const sniffLen = 512

// supportedMIMETypes are the image formats the pipeline migrates.
var supportedMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// SourceFile is one media reference from the legacy dump, carrying legacy
// owner keys that must be remapped to target-system ids before upload.
type SourceFile struct {
	Path            string   `json:"path"`
	Category        Category `json:"category"`
	LegacyUserID    string   `json:"legacy_user_id,omitempty"`
	LegacyServiceID string   `json:"legacy_service_id,omitempty"`
	LegacyMessageID string   `json:"legacy_message_id,omitempty"`
}

// ServiceKey is the target-system key pair for a service image.
type ServiceKey struct {
	ServiceID string `json:"service_id"`
	StylistID string `json:"stylist_id"`
}

// MessageKey is the target-system key pair for a chat image.
type MessageKey struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
}

// KeyMap carries the legacy-to-target id mappings built from the checkpoints
// of earlier steps. Storage paths derive from target keys, never legacy ones.
type KeyMap struct {
	Users    map[string]string     `json:"users"`
	Services map[string]ServiceKey `json:"services"`
	Messages map[string]MessageKey `json:"messages"`
}

// Asset is a derived, migration-ready media item. When CanMigrate is true the
// category-appropriate target key fields are guaranteed populated.
type Asset struct {
	OriginalPath string   `json:"original_path"`
	Category     Category `json:"category"`
	MIMEType     string   `json:"mime_type,omitempty"`

	UserID    string `json:"user_id,omitempty"`
	ServiceID string `json:"service_id,omitempty"`
	StylistID string `json:"stylist_id,omitempty"`
	ChatID    string `json:"chat_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`

	IsPreview  bool   `json:"is_preview,omitempty"`
	CanMigrate bool   `json:"can_migrate"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// DetectMIME sniffs the file's real content type from its leading bytes,
// ignoring the extension entirely.
func DetectMIME(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return "", err
	}
	mime := http.DetectContentType(buf[:n])
	// DetectContentType appends charset parameters to text types.
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}
	return mime, nil
}

// DeriveAsset turns a legacy media reference into a migration-ready asset.
// Key extraction failure or an unsupported content type produces an asset
// with CanMigrate = false and a machine-checkable skip reason, never an
// error: skipped assets are reported, not dropped.
func DeriveAsset(file *SourceFile, keys *KeyMap) Asset {
	asset := Asset{
		OriginalPath: file.Path,
		Category:     file.Category,
	}

	switch file.Category {
	case CategoryProfile:
		userID, ok := keys.Users[file.LegacyUserID]
		if !ok || userID == "" {
			asset.SkipReason = fmt.Sprintf("no target user for legacy id %q", file.LegacyUserID)
			return asset
		}
		asset.UserID = userID

	case CategoryService:
		key, ok := keys.Services[file.LegacyServiceID]
		if !ok || key.ServiceID == "" || key.StylistID == "" {
			asset.SkipReason = fmt.Sprintf("no target service for legacy id %q", file.LegacyServiceID)
			return asset
		}
		asset.ServiceID = key.ServiceID
		asset.StylistID = key.StylistID

	case CategoryChat:
		key, ok := keys.Messages[file.LegacyMessageID]
		if !ok || key.ChatID == "" || key.MessageID == "" {
			asset.SkipReason = fmt.Sprintf("no target message for legacy id %q", file.LegacyMessageID)
			return asset
		}
		asset.ChatID = key.ChatID
		asset.MessageID = key.MessageID

	default:
		asset.SkipReason = fmt.Sprintf("unknown media category %q", file.Category)
		return asset
	}

	mime, err := DetectMIME(file.Path)
	if err != nil {
		asset.SkipReason = fmt.Sprintf("cannot read file: %v", err)
		return asset
	}
	if _, ok := supportedMIMETypes[mime]; !ok {
		asset.SkipReason = fmt.Sprintf("unsupported content type %q", mime)
		return asset
	}

	asset.MIMEType = mime
	asset.CanMigrate = true
	return asset
}

// DeriveAssets derives all assets and flags service previews.
func DeriveAssets(files []SourceFile, keys *KeyMap) []Asset {
	assets := make([]Asset, 0, len(files))
	for i := range files {
		assets = append(assets, DeriveAsset(&files[i], keys))
	}
	MarkPreviews(assets)
	return assets
}

// MarkPreviews flags exactly one preview per service owner: migratable
// service assets are ordered by original path and the first one wins. The
// guarantee holds by construction, no later dedup pass runs.
func MarkPreviews(assets []Asset) {
	byService := make(map[string][]int)
	for i := range assets {
		a := &assets[i]
		a.IsPreview = false
		if a.Category == CategoryService && a.CanMigrate {
			byService[a.ServiceID] = append(byService[a.ServiceID], i)
		}
	}

	for _, indexes := range byService {
		sort.Slice(indexes, func(i, j int) bool {
			return assets[indexes[i]].OriginalPath < assets[indexes[j]].OriginalPath
		})
		assets[indexes[0]].IsPreview = true
	}
}

// StoragePath derives the deterministic object path for an asset from its
// target-system keys. The extension comes from the detected content type so
// mislabeled legacy files land with the right suffix.
func (a *Asset) StoragePath() string {
	ext := supportedMIMETypes[a.MIMEType]
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(a.OriginalPath))
	}

	switch a.Category {
	case CategoryProfile:
		return path.Join("avatars", a.UserID+ext)
	case CategoryService:
		base := strings.TrimSuffix(filepath.Base(a.OriginalPath), filepath.Ext(a.OriginalPath))
		return path.Join("services", a.StylistID, a.ServiceID, base+ext)
	case CategoryChat:
		return path.Join("chat", a.ChatID, a.MessageID+ext)
	default:
		return ""
	}
}

// MediaType returns the target media record type for the asset's category.
func (a *Asset) MediaType() string {
	switch a.Category {
	case CategoryProfile:
		return "avatar"
	case CategoryService:
		return "service_image"
	case CategoryChat:
		return "chat_image"
	default:
		return ""
	}
}
