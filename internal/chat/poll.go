package chat

type VotingVisibility string

const (
	VotingVisibilityPublic    VotingVisibility = "public"
	VotingVisibilityAnonymous VotingVisibility = "anonymous"
)

type PollOptionData struct {
	Text string
}

// CreatePollData is the request body for creating a poll.
type CreatePollData struct {
	ID                        string
	Name                      string
	Description               string
	Options                   []PollOptionData
	MaxVotesAllowed           int
	EnforceUniqueVote         bool
	AllowAnswers              bool
	AllowUserSuggestedOptions bool
	VotingVisibility          VotingVisibility
}

type Poll struct {
	ID   string
	Name string
}
