package attachments

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/composer/uploads"
	"github.com/ras0q/lazycompose/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingNotifier struct {
	mu       sync.Mutex
	warnings []chat.Notification
	errors   []chat.Notification
}

func (n *recordingNotifier) AddWarning(x chat.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, x)
}

func (n *recordingNotifier) AddError(x chat.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, x)
}

type checkerFunc func(ctx context.Context, file chat.File) (chat.UploadPermissionCheck, error)

func (f checkerFunc) CheckUpload(ctx context.Context, file chat.File) (chat.UploadPermissionCheck, error) {
	return f(ctx, file)
}

type uploaderFunc func(ctx context.Context, file chat.File) (chat.UploadResponse, error)

func (f uploaderFunc) Upload(ctx context.Context, file chat.File) (chat.UploadResponse, error) {
	return f(ctx, file)
}

type fakePreview struct {
	released bool
}

func (p *fakePreview) URI() string { return "blob:local" }
func (p *fakePreview) Release()    { p.released = true }

func okUploader() uploads.Uploader {
	return uploaderFunc(func(_ context.Context, file chat.File) (chat.UploadResponse, error) {
		return chat.UploadResponse{File: "https://cdn.example.com/" + file.Name, ThumbURL: "https://cdn.example.com/thumb"}, nil
	})
}

func allowAll() UploadChecker {
	return checkerFunc(func(context.Context, chat.File) (chat.UploadPermissionCheck, error) {
		return chat.UploadPermissionCheck{}, nil
	})
}

func newManager(checker UploadChecker, uploader uploads.Uploader, notifier chat.Notifier) *Manager {
	m := New(Options{
		Config:   config.AttachmentsConfig{MaxNumberOfFilesPerMessage: 3, MaxConcurrentUploads: 2},
		Checker:  checker,
		Uploads:  uploads.New(uploads.Options{Uploader: uploader, MaxConcurrent: 2}),
		Notifier: notifier,
	})
	m.Uploads().State().Subscribe(m.SyncUploads)

	return m
}

func TestManager_UploadImage(t *testing.T) {
	notifier := &recordingNotifier{}
	m := newManager(allowAll(), okUploader(), notifier)
	preview := &fakePreview{}

	a, err := m.UploadAttachment(context.Background(), FileToLocalAttachment(chat.File{
		Name:     "cat.png",
		MimeType: "image/png",
		Preview:  preview,
	}))
	require.NoError(t, err)

	assert.Equal(t, chat.AttachmentTypeImage, a.Type)
	assert.Equal(t, "https://cdn.example.com/cat.png", a.ImageURL)
	assert.Empty(t, a.AssetURL)
	assert.Nil(t, a.LocalMetadata.Preview)
	assert.True(t, preview.released)
	assert.Equal(t, chat.UploadStateFinished, a.LocalMetadata.UploadState)

	require.Len(t, m.Attachments(), 1)
	assert.Equal(t, a, m.Attachments()[0])
	assert.Len(t, m.SuccessfulUploads(), 1)
	assert.Empty(t, notifier.errors)
}

func TestManager_UploadFile(t *testing.T) {
	m := newManager(allowAll(), okUploader(), nil)

	a, err := m.UploadAttachment(context.Background(), FileToLocalAttachment(chat.File{
		Name:     "doc.pdf",
		MimeType: "application/pdf",
	}))
	require.NoError(t, err)

	assert.Equal(t, chat.AttachmentTypeFile, a.Type)
	assert.Equal(t, "https://cdn.example.com/doc.pdf", a.AssetURL)
	assert.Equal(t, "https://cdn.example.com/thumb", a.ThumbURL)
	assert.Empty(t, a.ImageURL)
}

func TestManager_BlockedUploadWarnsAndKeepsAttachment(t *testing.T) {
	notifier := &recordingNotifier{}
	uploaded := false
	m := newManager(
		checkerFunc(func(context.Context, chat.File) (chat.UploadPermissionCheck, error) {
			return chat.UploadPermissionCheck{UploadBlocked: true, Reason: "size limit"}, nil
		}),
		uploaderFunc(func(context.Context, chat.File) (chat.UploadResponse, error) {
			uploaded = true
			return chat.UploadResponse{}, nil
		}),
		notifier,
	)

	a, err := m.UploadAttachment(context.Background(), FileToLocalAttachment(chat.File{Name: "huge.zip"}))
	require.NoError(t, err)

	assert.False(t, uploaded)
	assert.Equal(t, chat.UploadStateBlocked, a.LocalMetadata.UploadState)
	require.Len(t, notifier.warnings, 1)
	assert.Equal(t, "size limit", notifier.warnings[0].Reason)
	assert.Equal(t, "AttachmentManager", notifier.warnings[0].Origin.Emitter)
	assert.Equal(t, 1, m.BlockedUploadsCount())
	assert.Empty(t, m.SuccessfulUploads())
}

func TestManager_FailedUploadNotifiesAndKeepsAttachment(t *testing.T) {
	notifier := &recordingNotifier{}
	boom := errors.New("network down")
	m := newManager(allowAll(), uploaderFunc(func(context.Context, chat.File) (chat.UploadResponse, error) {
		return chat.UploadResponse{}, boom
	}), notifier)

	a, err := m.UploadAttachment(context.Background(), FileToLocalAttachment(chat.File{Name: "doc.pdf"}))
	require.NoError(t, err)

	assert.Equal(t, chat.UploadStateFailed, a.LocalMetadata.UploadState)
	require.Len(t, notifier.errors, 1)
	assert.Equal(t, "api:attachment:upload:failed", notifier.errors[0].Type)
	assert.ErrorIs(t, notifier.errors[0].Err, boom)
	require.Len(t, m.Attachments(), 1)
	assert.Equal(t, 1, m.FailedUploadsCount())
}

func TestManager_CheckErrorMarksFailed(t *testing.T) {
	notifier := &recordingNotifier{}
	m := newManager(checkerFunc(func(context.Context, chat.File) (chat.UploadPermissionCheck, error) {
		return chat.UploadPermissionCheck{}, errors.New("settings unavailable")
	}), okUploader(), notifier)

	a, err := m.UploadAttachment(context.Background(), FileToLocalAttachment(chat.File{Name: "a.txt"}))
	require.NoError(t, err)

	assert.Equal(t, chat.UploadStateFailed, a.LocalMetadata.UploadState)
	assert.Len(t, notifier.errors, 1)
	assert.Empty(t, notifier.warnings)
}

func TestManager_UploadDisabled(t *testing.T) {
	m := newManager(allowAll(), nil, nil)

	assert.False(t, m.IsUploadEnabled())
	_, err := m.UploadFiles(context.Background(), chat.File{Name: "a"})
	assert.ErrorIs(t, err, ErrUploadDisabled)
}

func TestManager_UploadFilesRespectsSlots(t *testing.T) {
	m := newManager(allowAll(), okUploader(), nil)

	res, err := m.UploadFiles(context.Background(),
		chat.File{Name: "1"}, chat.File{Name: "2"}, chat.File{Name: "3"}, chat.File{Name: "4"},
	)
	require.NoError(t, err)

	assert.Len(t, res, 3)
	assert.Len(t, m.Attachments(), 3)
	assert.Zero(t, m.AvailableUploadSlots())
	assert.Len(t, m.SuccessfulUploads(), 3)
}

func TestManager_RemovedDuringUploadStaysRemoved(t *testing.T) {
	var m *Manager
	m = newManager(allowAll(), uploaderFunc(func(_ context.Context, file chat.File) (chat.UploadResponse, error) {
		for _, a := range m.Attachments() {
			m.RemoveAttachments(a.LocalMetadata.ID)
		}
		return chat.UploadResponse{File: file.Name}, nil
	}), nil)

	_, err := m.UploadAttachment(context.Background(), FileToLocalAttachment(chat.File{Name: "gone"}))
	require.NoError(t, err)

	assert.Empty(t, m.Attachments())
	assert.Empty(t, m.Uploads().State().LatestValue().Uploads)
}

func TestManager_UploadManagerRemovalRemovesAttachment(t *testing.T) {
	m := newManager(allowAll(), okUploader(), nil)

	a, err := m.UploadAttachment(context.Background(), FileToLocalAttachment(chat.File{Name: "x"}))
	require.NoError(t, err)
	require.Len(t, m.Attachments(), 1)

	m.Uploads().Forget(a.LocalMetadata.ID)

	assert.Empty(t, m.Attachments())
}

func TestManager_InitState(t *testing.T) {
	m := newManager(allowAll(), okUploader(), nil)

	m.InitState(&chat.LocalMessage{Attachments: []chat.Attachment{{Type: chat.AttachmentTypeImage, ImageURL: "u"}}})
	require.Len(t, m.Attachments(), 1)
	assert.NotEmpty(t, m.Attachments()[0].LocalMetadata.ID)
	assert.True(t, m.Attachments()[0].IsUploadSuccessful())

	m.InitState(nil)
	assert.Empty(t, m.Attachments())
}
