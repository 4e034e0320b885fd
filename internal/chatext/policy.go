package chatext

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/go-faster/errors"

	"github.com/ras0q/lazycompose/internal/chat"
)

// UploadPolicy decides whether a file may be uploaded according to the app settings.
// Images are checked against the image config, everything else against the file config.
type UploadPolicy struct {
	settings func(ctx context.Context) (chat.AppSettings, error)
}

func NewUploadPolicy(settings func(ctx context.Context) (chat.AppSettings, error)) *UploadPolicy {
	return &UploadPolicy{settings: settings}
}

func (p *UploadPolicy) CheckUpload(ctx context.Context, file chat.File) (chat.UploadPermissionCheck, error) {
	settings, err := p.settings(ctx)
	if err != nil {
		return chat.UploadPermissionCheck{}, errors.Wrap(err, "load upload settings")
	}

	cfg := settings.FileUploadConfig
	if file.IsImage() {
		cfg = settings.ImageUploadConfig
	}

	return CheckFile(cfg, file), nil
}

// CheckFile applies cfg to file. Blocked lists win over allowed lists and an empty allowed list
// allows everything.
func CheckFile(cfg chat.FileUploadConfig, file chat.File) chat.UploadPermissionCheck {
	if cfg.SizeLimit > 0 && file.Size > cfg.SizeLimit {
		return blocked(fmt.Sprintf("File is too large (%d bytes, limit %d)", file.Size, cfg.SizeLimit))
	}

	ext := strings.ToLower(path.Ext(file.Name))
	if containsFold(cfg.BlockedFileExtensions, ext) {
		return blocked(fmt.Sprintf("Files with extension %s are not allowed", ext))
	}
	if len(cfg.AllowedFileExtensions) > 0 && !containsFold(cfg.AllowedFileExtensions, ext) {
		return blocked(fmt.Sprintf("Files with extension %s are not allowed", ext))
	}

	mimeType := strings.ToLower(file.MimeType)
	if containsFold(cfg.BlockedMimeTypes, mimeType) {
		return blocked(fmt.Sprintf("Files of type %s are not allowed", mimeType))
	}
	if len(cfg.AllowedMimeTypes) > 0 && !containsFold(cfg.AllowedMimeTypes, mimeType) {
		return blocked(fmt.Sprintf("Files of type %s are not allowed", mimeType))
	}

	return chat.UploadPermissionCheck{}
}

func blocked(reason string) chat.UploadPermissionCheck {
	return chat.UploadPermissionCheck{UploadBlocked: true, Reason: reason}
}

// containsFold matches v against list ignoring case. Extensions match with or without the dot.
func containsFold(list []string, v string) bool {
	return slices.ContainsFunc(list, func(x string) bool {
		return strings.EqualFold(x, v) || (strings.HasPrefix(v, ".") && strings.EqualFold(x, v[1:]))
	})
}
