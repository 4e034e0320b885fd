package poll

import (
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ras0q/lazycompose/internal/chat"
)

// Field names an editable poll field.
type Field string

const (
	FieldName                      Field = "name"
	FieldDescription               Field = "description"
	FieldOptions                   Field = "options"
	FieldMaxVotesAllowed           Field = "max_votes_allowed"
	FieldEnforceUniqueVote         Field = "enforce_unique_vote"
	FieldAllowAnswers              Field = "allow_answers"
	FieldAllowUserSuggestedOptions Field = "allow_user_suggested_options"
	FieldVotingVisibility          Field = "voting_visibility"
)

const (
	ErrMsgOnlyNumbers   = "Only numbers are allowed"
	ErrMsgVotesRange    = "Type a number from 2 to 10"
	ErrMsgOptionExists  = "Option already exists"
	ErrMsgNameRequired  = "Name is required"
	minMaxVotesAllowed  = 2
	maxMaxVotesAllowed  = 10
	minDistinctOptions  = 2
	defaultMaxPollItems = 100
)

type Option struct {
	ID   string
	Text string
}

// Data is the poll being edited. MaxVotesAllowed keeps the raw input so it can be validated.
type Data struct {
	ID                        string
	Name                      string
	Description               string
	Options                   []Option
	MaxVotesAllowed           string
	EnforceUniqueVote         bool
	AllowAnswers              bool
	AllowUserSuggestedOptions bool
	VotingVisibility          chat.VotingVisibility
}

type Errors map[Field]string

type State struct {
	Data   Data
	Errors Errors
}

// OptionEdit changes the text of the option at Index.
type OptionEdit struct {
	Index int
	Text  string
}

// Patch carries the changed fields. Nil fields are unchanged. Option and Options both target
// FieldOptions; Option takes precedence.
type Patch struct {
	Name                      *string
	Description               *string
	Option                    *OptionEdit
	Options                   []Option
	MaxVotesAllowed           *string
	EnforceUniqueVote         *bool
	AllowAnswers              *bool
	AllowUserSuggestedOptions *bool
	VotingVisibility          *chat.VotingVisibility
}

// Fields lists the fields p changes.
func (p Patch) Fields() []Field {
	var fields []Field
	if p.Name != nil {
		fields = append(fields, FieldName)
	}
	if p.Description != nil {
		fields = append(fields, FieldDescription)
	}
	if p.Option != nil || p.Options != nil {
		fields = append(fields, FieldOptions)
	}
	if p.MaxVotesAllowed != nil {
		fields = append(fields, FieldMaxVotesAllowed)
	}
	if p.EnforceUniqueVote != nil {
		fields = append(fields, FieldEnforceUniqueVote)
	}
	if p.AllowAnswers != nil {
		fields = append(fields, FieldAllowAnswers)
	}
	if p.AllowUserSuggestedOptions != nil {
		fields = append(fields, FieldAllowUserSuggestedOptions)
	}
	if p.VotingVisibility != nil {
		fields = append(fields, FieldVotingVisibility)
	}

	return fields
}

// apply copies field from p onto data without any processing.
func (p Patch) apply(data Data, field Field) Data {
	switch field {
	case FieldName:
		data.Name = *p.Name
	case FieldDescription:
		data.Description = *p.Description
	case FieldOptions:
		if p.Option != nil {
			data.Options = spliceOption(data.Options, *p.Option)
		} else {
			data.Options = slices.Clone(p.Options)
		}
	case FieldMaxVotesAllowed:
		data.MaxVotesAllowed = *p.MaxVotesAllowed
	case FieldEnforceUniqueVote:
		data.EnforceUniqueVote = *p.EnforceUniqueVote
	case FieldAllowAnswers:
		data.AllowAnswers = *p.AllowAnswers
	case FieldAllowUserSuggestedOptions:
		data.AllowUserSuggestedOptions = *p.AllowUserSuggestedOptions
	case FieldVotingVisibility:
		data.VotingVisibility = *p.VotingVisibility
	}

	return data
}

func spliceOption(options []Option, edit OptionEdit) []Option {
	if edit.Index < 0 || edit.Index >= len(options) {
		return options
	}

	options = slices.Clone(options)
	options[edit.Index].Text = edit.Text

	return options
}

func newOption() Option {
	return Option{ID: uuid.NewString()}
}

func initialData() Data {
	return Data{
		ID:               uuid.NewString(),
		Options:          []Option{newOption()},
		VotingVisibility: chat.VotingVisibilityPublic,
	}
}

// distinctOptions returns the trimmed non-empty option texts without duplicates.
func distinctOptions(options []Option) []string {
	var texts []string
	for _, o := range options {
		text := strings.TrimSpace(o.Text)
		if text != "" && !slices.Contains(texts, text) {
			texts = append(texts, text)
		}
	}

	return texts
}

// ToCreatePollData converts the edited poll to a creation request.
func (d Data) ToCreatePollData() chat.CreatePollData {
	options := make([]chat.PollOptionData, 0, len(d.Options))
	for _, o := range d.Options {
		if text := strings.TrimSpace(o.Text); text != "" {
			options = append(options, chat.PollOptionData{Text: text})
		}
	}

	maxVotes, _ := strconv.Atoi(d.MaxVotesAllowed)

	return chat.CreatePollData{
		ID:                        d.ID,
		Name:                      strings.TrimSpace(d.Name),
		Description:               d.Description,
		Options:                   options,
		MaxVotesAllowed:           maxVotes,
		EnforceUniqueVote:         d.EnforceUniqueVote,
		AllowAnswers:              d.AllowAnswers,
		AllowUserSuggestedOptions: d.AllowUserSuggestedOptions,
		VotingVisibility:          d.VotingVisibility,
	}
}
