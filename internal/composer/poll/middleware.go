package poll

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/ras0q/lazycompose/internal/middleware"
)

const (
	EventFieldChange = "handleFieldChange"
	EventFieldBlur   = "handleFieldBlur"
	EventCompose     = "compose"

	StateProcessorsID       = "pollComposer/stateProcessors"
	StateValidationID       = "pollComposer/stateValidation"
	CompositionValidationID = "pollComposer/compositionValidation"
)

// Processor applies the change of one field to data.
type Processor func(data Data, patch Patch) Data

// Validator returns an error message for the field, or "" when it is valid.
type Validator func(data Data) string

// StateChange flows through the field change and blur pipelines.
type StateChange struct {
	Previous State
	Next     State
	Patch    Patch
	Fields   []Field
	Injected Errors
}

// DefaultProcessors are the processors used when none are configured.
func DefaultProcessors(maxOptions int) map[Field]Processor {
	return map[Field]Processor{
		FieldEnforceUniqueVote: func(data Data, patch Patch) Data {
			data.EnforceUniqueVote = *patch.EnforceUniqueVote
			data.MaxVotesAllowed = ""
			return data
		},
		FieldOptions: func(data Data, patch Patch) Data {
			if patch.Option == nil {
				return patch.apply(data, FieldOptions)
			}
			data.Options = editOption(data.Options, *patch.Option, maxOptions)
			return data
		},
	}
}

// editOption sets the text of one option. Typing into the last option appends an empty one
// while under maxOptions. Clearing an option that is not the last removes it.
func editOption(options []Option, edit OptionEdit, maxOptions int) []Option {
	if edit.Index < 0 || edit.Index >= len(options) {
		return options
	}

	isLast := edit.Index == len(options)-1
	empty := strings.TrimSpace(edit.Text) == ""

	if empty && !isLast {
		return slices.Delete(slices.Clone(options), edit.Index, edit.Index+1)
	}

	options = slices.Clone(options)
	options[edit.Index].Text = edit.Text
	if isLast && !empty && len(options) < maxOptions {
		options = append(options, newOption())
	}

	return options
}

// DefaultChangeValidators run while a field is edited.
func DefaultChangeValidators() map[Field]Validator {
	return map[Field]Validator{
		FieldMaxVotesAllowed: validateMaxVotesAllowed,
		FieldOptions:         validateOptions,
	}
}

// DefaultBlurValidators run when a field loses focus.
func DefaultBlurValidators() map[Field]Validator {
	return map[Field]Validator{
		FieldName: func(data Data) string {
			if strings.TrimSpace(data.Name) == "" {
				return ErrMsgNameRequired
			}
			return ""
		},
		FieldMaxVotesAllowed: validateMaxVotesAllowed,
	}
}

func validateMaxVotesAllowed(data Data) string {
	value := strings.TrimSpace(data.MaxVotesAllowed)
	if value == "" {
		return ""
	}

	n, err := strconv.Atoi(value)
	if err != nil || strings.ContainsAny(value, "+-") {
		return ErrMsgOnlyNumbers
	}
	if n < minMaxVotesAllowed || n > maxMaxVotesAllowed {
		return ErrMsgVotesRange
	}

	return ""
}

func validateOptions(data Data) string {
	seen := make(map[string]struct{}, len(data.Options))
	for _, o := range data.Options {
		text := strings.TrimSpace(o.Text)
		if text == "" {
			continue
		}
		if _, ok := seen[text]; ok {
			return ErrMsgOptionExists
		}
		seen[text] = struct{}{}
	}

	return ""
}

// NewStateProcessorsMiddleware applies the patch field by field.
func NewStateProcessorsMiddleware(processors map[Field]Processor) middleware.Middleware[StateChange] {
	return middleware.Middleware[StateChange]{
		ID: StateProcessorsID,
		Handlers: map[string]middleware.Handler[StateChange]{
			EventFieldChange: func(_ context.Context, c *middleware.Call[StateChange]) (middleware.Result[StateChange], error) {
				s := c.State()
				data := s.Next.Data
				for _, field := range s.Fields {
					if process, ok := processors[field]; ok {
						data = process(data, s.Patch)
						continue
					}
					data = s.Patch.apply(data, field)
				}
				s.Next.Data = data

				return c.Next(s)
			},
		},
	}
}

// NewStateValidationMiddleware validates the changed fields and merges injected errors.
func NewStateValidationMiddleware(onChange, onBlur map[Field]Validator) middleware.Middleware[StateChange] {
	validate := func(validators map[Field]Validator) middleware.Handler[StateChange] {
		return func(_ context.Context, c *middleware.Call[StateChange]) (middleware.Result[StateChange], error) {
			s := c.State()
			errs := maps.Clone(s.Next.Errors)
			if errs == nil {
				errs = Errors{}
			}

			for _, field := range s.Fields {
				msg := ""
				if v, ok := validators[field]; ok {
					msg = v(s.Next.Data)
				}
				if msg == "" {
					delete(errs, field)
				} else {
					errs[field] = msg
				}
			}
			for field, msg := range s.Injected {
				if msg == "" {
					delete(errs, field)
				} else {
					errs[field] = msg
				}
			}
			s.Next.Errors = errs

			return c.Next(s)
		}
	}

	return middleware.Middleware[StateChange]{
		ID: StateValidationID,
		Handlers: map[string]middleware.Handler[StateChange]{
			EventFieldChange: validate(onChange),
			EventFieldBlur:   validate(onBlur),
		},
	}
}

// CompositionState flows through the poll composition pipeline.
type CompositionState struct {
	State State
}

// NewCompositionValidationMiddleware discards the composition unless the poll can be created.
func NewCompositionValidationMiddleware() middleware.Middleware[CompositionState] {
	return middleware.Middleware[CompositionState]{
		ID: CompositionValidationID,
		Handlers: map[string]middleware.Handler[CompositionState]{
			EventCompose: func(_ context.Context, c *middleware.Call[CompositionState]) (middleware.Result[CompositionState], error) {
				if !CanCreatePoll(c.State().State) {
					return c.Discard()
				}

				return c.Forward()
			},
		},
	}
}

// CanCreatePoll reports whether s has a name, at least two distinct options and no errors.
func CanCreatePoll(s State) bool {
	if strings.TrimSpace(s.Data.Name) == "" {
		return false
	}
	if len(distinctOptions(s.Data.Options)) < minDistinctOptions {
		return false
	}
	for _, msg := range s.Errors {
		if msg != "" {
			return false
		}
	}

	return validateMaxVotesAllowed(s.Data) == "" && validateOptions(s.Data) == ""
}
