package attachments

import (
	"context"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/middleware"
)

const (
	EventPrepare     = "prepare"
	EventPostProcess = "postProcess"

	UploadPermissionCheckMiddlewareID = "attachments/uploadPermissionCheck"
	BlockedUploadNotificationID       = "attachments/blockedUploadNotification"
	UploadErrorHandlerID              = "attachments/uploadErrorHandler"
	PostUploadEnrichmentID            = "attachments/postUploadEnrichment"

	emitter = "AttachmentManager"
)

// PreUploadState flows through the pre-upload pipeline.
type PreUploadState struct {
	Attachment chat.LocalAttachment
}

// PostUploadState flows through the post-upload pipeline. Exactly one of Response and Err is set.
type PostUploadState struct {
	Attachment chat.LocalAttachment
	Response   *chat.UploadResponse
	Err        error
}

// NewUploadPermissionCheckMiddleware asks checker whether the file may be uploaded and tags the
// attachment as pending or blocked.
func NewUploadPermissionCheckMiddleware(checker UploadChecker, notifier chat.Notifier) middleware.Middleware[PreUploadState] {
	return middleware.Middleware[PreUploadState]{
		ID: UploadPermissionCheckMiddlewareID,
		Handlers: map[string]middleware.Handler[PreUploadState]{
			EventPrepare: func(ctx context.Context, c *middleware.Call[PreUploadState]) (middleware.Result[PreUploadState], error) {
				s := c.State()
				meta := &s.Attachment.LocalMetadata
				if checker == nil || meta.File == nil {
					meta.UploadState = chat.UploadStatePending
					return c.Next(s)
				}

				check, err := checker.CheckUpload(ctx, *meta.File)
				if err != nil {
					meta.UploadState = chat.UploadStateFailed
					notifier.AddError(chat.Notification{
						Severity: chat.SeverityError,
						Message:  "Error checking attachment upload permission",
						Origin: chat.NotificationOrigin{
							Emitter: emitter,
							Context: map[string]any{"attachment": s.Attachment},
						},
						Type:   "api:attachment:upload-check:failed",
						Reason: err.Error(),
						Err:    err,
					})

					return c.Complete(s)
				}

				meta.UploadPermissionCheck = &check
				if check.UploadBlocked {
					meta.UploadState = chat.UploadStateBlocked
				} else {
					meta.UploadState = chat.UploadStatePending
				}

				return c.Next(s)
			},
		},
	}
}

// NewBlockedUploadNotificationMiddleware warns about blocked files and lets the chain continue.
func NewBlockedUploadNotificationMiddleware(notifier chat.Notifier) middleware.Middleware[PreUploadState] {
	return middleware.Middleware[PreUploadState]{
		ID: BlockedUploadNotificationID,
		Handlers: map[string]middleware.Handler[PreUploadState]{
			EventPrepare: func(_ context.Context, c *middleware.Call[PreUploadState]) (middleware.Result[PreUploadState], error) {
				s := c.State()
				if s.Attachment.LocalMetadata.UploadState != chat.UploadStateBlocked {
					return c.Forward()
				}

				reason := ""
				if check := s.Attachment.LocalMetadata.UploadPermissionCheck; check != nil {
					reason = check.Reason
				}
				notifier.AddWarning(chat.Notification{
					Severity: chat.SeverityWarning,
					Message:  "The attachment upload was blocked",
					Origin: chat.NotificationOrigin{
						Emitter: emitter,
						Context: map[string]any{"blockedAttachment": s.Attachment},
					},
					Type:   "validation:attachment:upload:blocked",
					Reason: reason,
				})

				return c.Forward()
			},
		},
	}
}

// NewUploadErrorHandlerMiddleware reports a failed upload and keeps the attachment for a retry.
func NewUploadErrorHandlerMiddleware(notifier chat.Notifier) middleware.Middleware[PostUploadState] {
	return middleware.Middleware[PostUploadState]{
		ID: UploadErrorHandlerID,
		Handlers: map[string]middleware.Handler[PostUploadState]{
			EventPostProcess: func(_ context.Context, c *middleware.Call[PostUploadState]) (middleware.Result[PostUploadState], error) {
				s := c.State()
				if s.Err == nil {
					return c.Forward()
				}

				s.Attachment.LocalMetadata.UploadState = chat.UploadStateFailed
				notifier.AddError(chat.Notification{
					Severity: chat.SeverityError,
					Message:  "Error uploading attachment",
					Origin: chat.NotificationOrigin{
						Emitter: emitter,
						Context: map[string]any{"failedAttachment": s.Attachment},
					},
					Type:   "api:attachment:upload:failed",
					Reason: s.Err.Error(),
					Err:    s.Err,
				})

				return c.Next(s)
			},
		},
	}
}

// NewPostUploadEnrichmentMiddleware swaps local previews for the URLs returned by the upload.
func NewPostUploadEnrichmentMiddleware() middleware.Middleware[PostUploadState] {
	return middleware.Middleware[PostUploadState]{
		ID: PostUploadEnrichmentID,
		Handlers: map[string]middleware.Handler[PostUploadState]{
			EventPostProcess: func(_ context.Context, c *middleware.Call[PostUploadState]) (middleware.Result[PostUploadState], error) {
				s := c.State()
				if s.Err != nil || s.Response == nil {
					return c.Forward()
				}

				a := &s.Attachment
				if a.Type == chat.AttachmentTypeImage {
					a.ImageURL = s.Response.File
					if a.LocalMetadata.Preview != nil {
						a.LocalMetadata.Preview.Release()
						a.LocalMetadata.Preview = nil
					}
				} else {
					a.AssetURL = s.Response.File
					if s.Response.ThumbURL != "" {
						a.ThumbURL = s.Response.ThumbURL
					}
				}
				a.LocalMetadata.UploadState = chat.UploadStateFinished
				a.LocalMetadata.Progress = 1

				return c.Next(s)
			},
		},
	}
}
