// Package attachments manages the local attachments of a composition and their uploads.
package attachments

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/composer/uploads"
	"github.com/ras0q/lazycompose/internal/config"
	"github.com/ras0q/lazycompose/internal/logging"
	"github.com/ras0q/lazycompose/internal/middleware"
	"github.com/ras0q/lazycompose/internal/state"
)

var ErrUploadDisabled = errors.New("attachments: upload is disabled")

// UploadChecker decides whether a file may be uploaded.
type UploadChecker interface {
	CheckUpload(ctx context.Context, file chat.File) (chat.UploadPermissionCheck, error)
}

type State struct {
	Attachments []chat.LocalAttachment
}

type Options struct {
	Config   config.AttachmentsConfig
	Checker  UploadChecker
	Uploads  *uploads.Manager
	Notifier chat.Notifier
	Logger   *zap.Logger
}

type Manager struct {
	config   config.AttachmentsConfig
	uploads  *uploads.Manager
	notifier chat.Notifier
	logger   *zap.Logger

	state      *state.Store[State]
	preUpload  *middleware.Executor[PreUploadState]
	postUpload *middleware.Executor[PostUploadState]
}

func New(opts Options) *Manager {
	logger := logging.OrNop(opts.Logger).Named("attachment_manager")

	notifier := opts.Notifier
	if notifier == nil {
		notifier = chat.NopNotifier{}
	}

	up := opts.Uploads
	if up == nil {
		up = uploads.New(uploads.Options{
			MaxConcurrent: opts.Config.MaxConcurrentUploads,
			Logger:        logger,
		})
	}

	preUpload := middleware.New[PreUploadState](middleware.WithLogger(logger))
	preUpload.Use(
		NewUploadPermissionCheckMiddleware(opts.Checker, notifier),
		NewBlockedUploadNotificationMiddleware(notifier),
	)

	postUpload := middleware.New[PostUploadState](middleware.WithLogger(logger))
	postUpload.Use(
		NewUploadErrorHandlerMiddleware(notifier),
		NewPostUploadEnrichmentMiddleware(),
	)

	return &Manager{
		config:     opts.Config,
		uploads:    up,
		notifier:   notifier,
		logger:     logger,
		state:      state.New(State{}),
		preUpload:  preUpload,
		postUpload: postUpload,
	}
}

func (m *Manager) State() *state.Store[State] {
	return m.state
}

func (m *Manager) Uploads() *uploads.Manager {
	return m.uploads
}

// PreUploadMiddleware exposes the pipeline run before each upload.
func (m *Manager) PreUploadMiddleware() *middleware.Executor[PreUploadState] {
	return m.preUpload
}

// PostUploadMiddleware exposes the pipeline run after each upload.
func (m *Manager) PostUploadMiddleware() *middleware.Executor[PostUploadState] {
	return m.postUpload
}

func (m *Manager) Attachments() []chat.LocalAttachment {
	return m.state.LatestValue().Attachments
}

func (m *Manager) IsUploadEnabled() bool {
	return m.uploads.Enabled()
}

// InitState seeds the attachments from message, or clears them when message is nil. Scraped
// links are left to the link-previews manager.
func (m *Manager) InitState(message *chat.LocalMessage) {
	m.uploads.Reset()

	if message == nil || len(message.Attachments) == 0 {
		m.state.Next(State{})
		return
	}

	attachments := make([]chat.LocalAttachment, 0, len(message.Attachments))
	for _, a := range message.Attachments {
		if a.IsScrapedLink() {
			continue
		}
		attachments = append(attachments, chat.LocalAttachment{
			Attachment:    a,
			LocalMetadata: chat.LocalMetadata{ID: uuid.NewString()},
		})
	}
	m.state.Next(State{Attachments: attachments})
}

func (m *Manager) AvailableUploadSlots() int {
	return max(0, m.config.MaxNumberOfFilesPerMessage-len(m.Attachments()))
}

func (m *Manager) countState(s chat.UploadState) int {
	n := 0
	for _, a := range m.Attachments() {
		if a.LocalMetadata.UploadState == s {
			n++
		}
	}

	return n
}

func (m *Manager) UploadsInProgressCount() int { return m.countState(chat.UploadStateUploading) }
func (m *Manager) FailedUploadsCount() int     { return m.countState(chat.UploadStateFailed) }
func (m *Manager) BlockedUploadsCount() int    { return m.countState(chat.UploadStateBlocked) }
func (m *Manager) PendingUploadsCount() int    { return m.countState(chat.UploadStatePending) }

// SuccessfulUploads returns the attachments that can be sent.
func (m *Manager) SuccessfulUploads() []chat.LocalAttachment {
	var res []chat.LocalAttachment
	for _, a := range m.Attachments() {
		if a.IsUploadSuccessful() {
			res = append(res, a)
		}
	}

	return res
}

// FileToLocalAttachment builds an attachment for file, typed as an image or a plain file by
// its MIME type.
func FileToLocalAttachment(file chat.File) chat.LocalAttachment {
	a := chat.LocalAttachment{
		Attachment: chat.Attachment{
			Type:     chat.AttachmentTypeFile,
			Title:    file.Name,
			MimeType: file.MimeType,
			FileSize: file.Size,
		},
		LocalMetadata: chat.LocalMetadata{
			ID:   uuid.NewString(),
			File: &file,
		},
	}
	if file.IsImage() {
		a.Type = chat.AttachmentTypeImage
		a.Fallback = file.Name
		a.LocalMetadata.Preview = file.Preview
	}

	return a
}

// UpsertAttachments replaces attachments with matching local ids and appends the rest.
func (m *Manager) UpsertAttachments(attachments ...chat.LocalAttachment) {
	m.state.PartialNext(func(s *State) {
		next := slices.Clone(s.Attachments)
		for _, a := range attachments {
			if i := indexOf(next, a.LocalMetadata.ID); i >= 0 {
				next[i] = a
			} else {
				next = append(next, a)
			}
		}
		s.Attachments = next
	})
}

// RemoveAttachments drops attachments by local id and abandons their uploads.
func (m *Manager) RemoveAttachments(ids ...string) {
	m.state.PartialNext(func(s *State) {
		s.Attachments = slices.DeleteFunc(slices.Clone(s.Attachments), func(a chat.LocalAttachment) bool {
			return slices.Contains(ids, a.LocalMetadata.ID)
		})
	})

	m.uploads.Forget(ids...)
}

// updateIfPresent applies patch to the attachment with id only if it is still in the list.
func (m *Manager) updateIfPresent(id string, patch func(a *chat.LocalAttachment)) bool {
	found := false
	m.state.PartialNext(func(s *State) {
		i := indexOf(s.Attachments, id)
		if i < 0 {
			return
		}

		found = true
		next := slices.Clone(s.Attachments)
		patch(&next[i])
		s.Attachments = next
	})

	return found
}

// SyncUploads reconciles the attachments with a change in the upload manager. Uploads that
// disappeared remove their attachments and current uploads are upserted by local id.
func (m *Manager) SyncUploads(next, prev uploads.State) {
	var removed []string
	for _, u := range prev.Uploads {
		if _, ok := next.Get(u.ID); !ok {
			removed = append(removed, u.ID)
		}
	}

	m.state.PartialNext(func(s *State) {
		attachments := slices.DeleteFunc(slices.Clone(s.Attachments), func(a chat.LocalAttachment) bool {
			return slices.Contains(removed, a.LocalMetadata.ID)
		})
		for _, u := range next.Uploads {
			i := indexOf(attachments, u.ID)
			if i < 0 {
				a := FileToLocalAttachment(u.File)
				a.LocalMetadata.ID = u.ID
				attachments = append(attachments, a)
				i = len(attachments) - 1
			}

			// Post-upload enrichment owns the finished state.
			if u.State == chat.UploadStateFinished {
				continue
			}
			attachments[i].LocalMetadata.UploadState = u.State
			attachments[i].LocalMetadata.Progress = u.Progress
		}
		s.Attachments = attachments
	})
}

// UploadFiles turns files into attachments and uploads them concurrently. Files beyond the
// available slots are ignored.
func (m *Manager) UploadFiles(ctx context.Context, files ...chat.File) ([]chat.LocalAttachment, error) {
	if !m.IsUploadEnabled() {
		return nil, ErrUploadDisabled
	}

	slots := m.AvailableUploadSlots()
	if len(files) > slots {
		m.logger.Debug("ignoring files beyond the upload limit",
			zap.Int("files", len(files)),
			zap.Int("slots", slots),
		)
		files = files[:slots]
	}

	results := make([]chat.LocalAttachment, len(files))
	eg, ctx := errgroup.WithContext(ctx)
	for i, file := range files {
		a := FileToLocalAttachment(file)
		m.UpsertAttachments(a)
		eg.Go(func() error {
			res, err := m.UploadAttachment(ctx, a)
			results[i] = res
			return err
		})
	}

	if err := eg.Wait(); err != nil {
		return results, errors.Wrap(err, "upload files")
	}

	return results, nil
}

// UploadAttachment runs the pre-upload pipeline, uploads the file unless it is blocked and
// runs the post-upload pipeline. Upload failures are reported as notifications and leave the
// attachment in the failed state. The result is applied only if the attachment was not removed
// in the meantime.
func (m *Manager) UploadAttachment(ctx context.Context, attachment chat.LocalAttachment) (chat.LocalAttachment, error) {
	if !m.IsUploadEnabled() {
		return attachment, ErrUploadDisabled
	}
	if attachment.LocalMetadata.ID == "" {
		attachment.LocalMetadata.ID = uuid.NewString()
	}
	id := attachment.LocalMetadata.ID

	pre, err := m.preUpload.Execute(ctx, middleware.ExecuteParams[PreUploadState]{
		EventName:    EventPrepare,
		InitialValue: PreUploadState{Attachment: attachment},
		Mode:         middleware.ModeConcurrent,
	})
	if err != nil {
		return attachment, errors.Wrap(err, "prepare attachment")
	}
	if pre.Discarded() {
		return attachment, nil
	}

	attachment = pre.State.Attachment
	m.UpsertAttachments(attachment)

	switch attachment.LocalMetadata.UploadState {
	case chat.UploadStateBlocked, chat.UploadStateFailed:
		return attachment, nil
	}
	if attachment.LocalMetadata.File == nil {
		return attachment, nil
	}

	if !m.updateIfPresent(id, func(a *chat.LocalAttachment) {
		a.LocalMetadata.UploadState = chat.UploadStateUploading
	}) {
		return attachment, nil
	}
	attachment.LocalMetadata.UploadState = chat.UploadStateUploading

	res, uploadErr := m.uploads.Upload(ctx, id, *attachment.LocalMetadata.File)
	if errors.Is(uploadErr, uploads.ErrCanceled) {
		return attachment, nil
	}

	post := PostUploadState{Attachment: attachment, Err: uploadErr}
	if uploadErr == nil {
		post.Response = &res
	}

	result, err := m.postUpload.Execute(ctx, middleware.ExecuteParams[PostUploadState]{
		EventName:    EventPostProcess,
		InitialValue: post,
		Mode:         middleware.ModeConcurrent,
	})
	if err != nil {
		return attachment, errors.Wrap(err, "post-process attachment")
	}
	if result.Discarded() {
		return attachment, nil
	}

	attachment = result.State.Attachment
	if !m.updateIfPresent(id, func(a *chat.LocalAttachment) { *a = attachment }) {
		m.logger.Debug("attachment removed during upload", zap.String("id", id))
	}

	return attachment, nil
}

func indexOf(attachments []chat.LocalAttachment, id string) int {
	return slices.IndexFunc(attachments, func(a chat.LocalAttachment) bool {
		return a.LocalMetadata.ID == id
	})
}
