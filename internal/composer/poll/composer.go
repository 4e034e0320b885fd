// Package poll edits a poll before it is created and attached to a message.
package poll

import (
	"context"

	"go.uber.org/zap"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/config"
	"github.com/ras0q/lazycompose/internal/logging"
	"github.com/ras0q/lazycompose/internal/middleware"
	"github.com/ras0q/lazycompose/internal/state"
)

type Options struct {
	Config config.PollConfig
	// Processors replaces the default field processors.
	Processors map[Field]Processor
	// ChangeValidators and BlurValidators replace the default validators.
	ChangeValidators map[Field]Validator
	BlurValidators   map[Field]Validator
	Logger           *zap.Logger
}

type Composer struct {
	logger *zap.Logger

	state       *state.Store[State]
	stateMW     *middleware.Executor[StateChange]
	compositeMW *middleware.Executor[CompositionState]
}

func New(opts Options) *Composer {
	logger := logging.OrNop(opts.Logger).Named("poll_composer")

	maxOptions := opts.Config.MaxOptions
	if maxOptions <= 0 {
		maxOptions = defaultMaxPollItems
	}

	processors := opts.Processors
	if processors == nil {
		processors = DefaultProcessors(maxOptions)
	}
	onChange := opts.ChangeValidators
	if onChange == nil {
		onChange = DefaultChangeValidators()
	}
	onBlur := opts.BlurValidators
	if onBlur == nil {
		onBlur = DefaultBlurValidators()
	}

	stateMW := middleware.New[StateChange](middleware.WithLogger(logger))
	stateMW.Use(
		NewStateProcessorsMiddleware(processors),
		NewStateValidationMiddleware(onChange, onBlur),
	)

	compositeMW := middleware.New[CompositionState](middleware.WithLogger(logger))
	compositeMW.Use(NewCompositionValidationMiddleware())

	return &Composer{
		logger:      logger,
		state:       state.New(State{Data: initialData(), Errors: Errors{}}),
		stateMW:     stateMW,
		compositeMW: compositeMW,
	}
}

func (c *Composer) State() *state.Store[State] {
	return c.state
}

func (c *Composer) StateMiddleware() *middleware.Executor[StateChange] {
	return c.stateMW
}

func (c *Composer) CompositionMiddleware() *middleware.Executor[CompositionState] {
	return c.compositeMW
}

func (c *Composer) Data() Data {
	return c.state.LatestValue().Data
}

func (c *Composer) Errors() Errors {
	return c.state.LatestValue().Errors
}

func (c *Composer) CanCreatePoll() bool {
	return CanCreatePoll(c.state.LatestValue())
}

// InitState resets the poll to a fresh one with a single empty option.
func (c *Composer) InitState() {
	c.state.Next(State{Data: initialData(), Errors: Errors{}})
}

// UpdateFields applies patch, validates the changed fields and records injected errors.
func (c *Composer) UpdateFields(ctx context.Context, patch Patch, injected Errors) error {
	current := c.state.LatestValue()
	fields := patch.Fields()
	if len(fields) == 0 && len(injected) == 0 {
		return nil
	}

	return c.runState(ctx, EventFieldChange, StateChange{
		Previous: current,
		Next:     current,
		Patch:    patch,
		Fields:   fields,
		Injected: injected,
	})
}

// HandleFieldBlur runs the blur validator of field.
func (c *Composer) HandleFieldBlur(ctx context.Context, field Field) error {
	current := c.state.LatestValue()

	return c.runState(ctx, EventFieldBlur, StateChange{
		Previous: current,
		Next:     current,
		Fields:   []Field{field},
	})
}

func (c *Composer) runState(ctx context.Context, event string, change StateChange) error {
	res, err := c.stateMW.Execute(ctx, middleware.ExecuteParams[StateChange]{
		EventName:    event,
		InitialValue: change,
		Mode:         middleware.ModeConcurrent,
	})
	if err != nil {
		return err
	}
	if res.Discarded() {
		return nil
	}

	c.state.Next(res.State.Next)

	return nil
}

// Compose returns the poll creation request, or nil when the poll cannot be created yet.
func (c *Composer) Compose(ctx context.Context) (*chat.CreatePollData, error) {
	res, err := c.compositeMW.Execute(ctx, middleware.ExecuteParams[CompositionState]{
		EventName:    EventCompose,
		InitialValue: CompositionState{State: c.state.LatestValue()},
	})
	if err != nil {
		return nil, err
	}
	if res.Discarded() {
		c.logger.Debug("poll composition discarded")
		return nil, nil
	}

	data := res.State.State.Data.ToCreatePollData()

	return &data, nil
}
