// Package uploads tracks file uploads in flight and bounds how many run at once.
package uploads

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/logging"
	"github.com/ras0q/lazycompose/internal/state"
)

var (
	ErrNoUploader = errors.New("uploads: no uploader configured")
	ErrCanceled   = errors.New("uploads: upload canceled")
)

// Uploader is the upload transport.
type Uploader interface {
	Upload(ctx context.Context, file chat.File) (chat.UploadResponse, error)
}

// ProgressUploader is implemented by uploaders that report progress in [0, 1].
type ProgressUploader interface {
	UploadWithProgress(ctx context.Context, file chat.File, onProgress func(float64)) (chat.UploadResponse, error)
}

type Upload struct {
	ID       string
	File     chat.File
	State    chat.UploadState
	Progress float64
	Response *chat.UploadResponse
	Err      error
}

type State struct {
	Uploads []Upload
}

func (s State) Get(id string) (Upload, bool) {
	i := slices.IndexFunc(s.Uploads, func(u Upload) bool { return u.ID == id })
	if i < 0 {
		return Upload{}, false
	}

	return s.Uploads[i], true
}

type Options struct {
	Uploader      Uploader
	MaxConcurrent int
	Logger        *zap.Logger
}

type Manager struct {
	uploader Uploader
	sem      *semaphore.Weighted
	logger   *zap.Logger
	state    *state.Store[State]

	mu       sync.Mutex
	inflight map[string]*inflight
}

type inflight struct {
	cancel context.CancelFunc
}

func New(opts Options) *Manager {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &Manager{
		uploader: opts.Uploader,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		logger:   logging.OrNop(opts.Logger).Named("upload_manager"),
		state:    state.New(State{}),
		inflight: make(map[string]*inflight),
	}
}

func (m *Manager) State() *state.Store[State] {
	return m.state
}

func (m *Manager) Enabled() bool {
	return m.uploader != nil
}

// Upload sends file under the local id and records its progress. It returns ErrCanceled when
// the upload is canceled or forgotten before it finishes.
func (m *Manager) Upload(ctx context.Context, id string, file chat.File) (chat.UploadResponse, error) {
	if m.uploader == nil {
		return chat.UploadResponse{}, ErrNoUploader
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	self := &inflight{cancel: cancel}
	m.mu.Lock()
	if prev, ok := m.inflight[id]; ok {
		prev.cancel()
	}
	m.inflight[id] = self
	m.mu.Unlock()

	m.upsert(Upload{ID: id, File: file, State: chat.UploadStateUploading})

	res, err := m.upload(ctx, id, file)

	m.mu.Lock()
	tracked := m.inflight[id] == self
	if tracked {
		delete(m.inflight, id)
	}
	m.mu.Unlock()

	if !tracked {
		m.logger.Debug("upload canceled", zap.String("id", id))
		return chat.UploadResponse{}, ErrCanceled
	}

	if err != nil {
		m.update(id, func(u *Upload) {
			u.State = chat.UploadStateFailed
			u.Err = err
		})

		return chat.UploadResponse{}, errors.Wrapf(err, "upload %s", file.Name)
	}

	m.update(id, func(u *Upload) {
		u.State = chat.UploadStateFinished
		u.Progress = 1
		u.Response = &res
	})

	return res, nil
}

func (m *Manager) upload(ctx context.Context, id string, file chat.File) (chat.UploadResponse, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return chat.UploadResponse{}, err
	}
	defer m.sem.Release(1)

	if pu, ok := m.uploader.(ProgressUploader); ok {
		return pu.UploadWithProgress(ctx, file, func(p float64) {
			m.update(id, func(u *Upload) { u.Progress = p })
		})
	}

	return m.uploader.Upload(ctx, file)
}

// Cancel aborts an in-flight upload and drops its record.
func (m *Manager) Cancel(id string) {
	m.Forget(id)
}

// Forget drops records, canceling the ones still in flight.
func (m *Manager) Forget(ids ...string) {
	m.mu.Lock()
	for _, id := range ids {
		if f, ok := m.inflight[id]; ok {
			f.cancel()
			delete(m.inflight, id)
		}
	}
	m.mu.Unlock()

	m.state.PartialNext(func(s *State) {
		s.Uploads = slices.DeleteFunc(slices.Clone(s.Uploads), func(u Upload) bool {
			return slices.Contains(ids, u.ID)
		})
	})
}

// Reset cancels everything and clears the state.
func (m *Manager) Reset() {
	m.mu.Lock()
	for id, f := range m.inflight {
		f.cancel()
		delete(m.inflight, id)
	}
	m.mu.Unlock()

	m.state.Next(State{})
}

func (m *Manager) InProgressCount() int {
	n := 0
	for _, u := range m.state.LatestValue().Uploads {
		if u.State == chat.UploadStateUploading {
			n++
		}
	}

	return n
}

func (m *Manager) upsert(upload Upload) {
	m.state.PartialNext(func(s *State) {
		uploads := slices.Clone(s.Uploads)
		if i := slices.IndexFunc(uploads, func(u Upload) bool { return u.ID == upload.ID }); i >= 0 {
			uploads[i] = upload
		} else {
			uploads = append(uploads, upload)
		}
		s.Uploads = uploads
	})
}

// update patches an existing record. Records that were forgotten stay forgotten.
func (m *Manager) update(id string, patch func(u *Upload)) {
	m.state.PartialNext(func(s *State) {
		i := slices.IndexFunc(s.Uploads, func(u Upload) bool { return u.ID == id })
		if i < 0 {
			return
		}

		uploads := slices.Clone(s.Uploads)
		patch(&uploads[i])
		s.Uploads = uploads
	})
}
