package chatext

import (
	"slices"

	"go.uber.org/zap"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/logging"
	"github.com/ras0q/lazycompose/internal/state"
)

// Notifications keeps the notifications a client has not dismissed yet.
type Notifications struct {
	logger *zap.Logger
	state  *state.Store[[]chat.Notification]
}

func NewNotifications(logger *zap.Logger) *Notifications {
	return &Notifications{
		logger: logging.OrNop(logger).Named("notifications"),
		state:  state.New[[]chat.Notification](nil),
	}
}

func (n *Notifications) State() *state.Store[[]chat.Notification] {
	return n.state
}

func (n *Notifications) List() []chat.Notification {
	return n.state.LatestValue()
}

func (n *Notifications) AddWarning(x chat.Notification) {
	if x.Severity == "" {
		x.Severity = chat.SeverityWarning
	}
	n.logger.Warn(x.Message, fields(x)...)
	n.add(x)
}

func (n *Notifications) AddError(x chat.Notification) {
	if x.Severity == "" {
		x.Severity = chat.SeverityError
	}
	n.logger.Error(x.Message, fields(x)...)
	n.add(x)
}

func (n *Notifications) add(x chat.Notification) {
	n.state.PartialNext(func(list *[]chat.Notification) {
		*list = append(slices.Clone(*list), x)
	})
}

// Dismiss drops the oldest notification.
func (n *Notifications) Dismiss() {
	n.state.PartialNext(func(list *[]chat.Notification) {
		if len(*list) > 0 {
			*list = slices.Clone((*list)[1:])
		}
	})
}

func (n *Notifications) Clear() {
	n.state.Next(nil)
}

func fields(x chat.Notification) []zap.Field {
	fs := []zap.Field{
		zap.String("type", x.Type),
		zap.String("emitter", x.Origin.Emitter),
	}
	if x.Reason != "" {
		fs = append(fs, zap.String("reason", x.Reason))
	}
	if x.Err != nil {
		fs = append(fs, zap.Error(x.Err))
	}

	return fs
}
