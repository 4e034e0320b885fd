package chat

type Mute struct {
	TargetID string
}

type ChannelMute struct {
	ChannelCID string
}

type Device struct {
	ID           string
	PushProvider string
}

type User struct {
	ID           string
	Name         string
	Image        string
	Role         string
	Online       bool
	Mutes        []Mute
	ChannelMutes []ChannelMute
	Devices      []Device
	Custom       map[string]any
}

// Trimmed drops the large and volatile parts of u that a message does not need.
func (u User) Trimmed() User {
	u.Mutes = nil
	u.ChannelMutes = nil
	u.Devices = nil

	return u
}
