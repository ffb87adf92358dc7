package entity

import "strings"

type Status int16

const (
	StatusUnknown Status = 0

	// StatusActive codes can still be consumed.
	StatusActive Status = 1

	// StatusExpired is terminal; set by Validate, Resend or the sweep.
	StatusExpired Status = 2

	// StatusUsed is terminal; set only by a successful Validate.
	StatusUsed Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusExpired:
		return "EXPIRED"
	case StatusUsed:
		return "USED"
	default:
		return "UNKNOWN"
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusUsed
}

type Channel int16

const (
	ChannelUnknown Channel = 0
	ChannelEmail   Channel = 1
	ChannelSMS     Channel = 2
	ChannelChat    Channel = 3
	ChannelFile    Channel = 4
)

func (c Channel) String() string {
	switch c {
	case ChannelEmail:
		return "EMAIL"
	case ChannelSMS:
		return "SMS"
	case ChannelChat:
		return "CHAT"
	case ChannelFile:
		return "FILE"
	default:
		return "UNKNOWN"
	}
}

// ChannelFromString is case-insensitive and accepts TELEGRAM for CHAT.
func ChannelFromString(s string) Channel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EMAIL":
		return ChannelEmail
	case "SMS":
		return ChannelSMS
	case "CHAT", "TELEGRAM":
		return ChannelChat
	case "FILE":
		return ChannelFile
	default:
		return ChannelUnknown
	}
}

// Channels lists every deliverable channel.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelSMS, ChannelChat, ChannelFile}
}

// Reason explains an invalid verdict. It is logged and never returned to callers.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonNoMatch  Reason = "no_match"
	ReasonExpired  Reason = "expired"
	ReasonConsumed Reason = "consumed"
	ReasonLocked   Reason = "locked"
)
