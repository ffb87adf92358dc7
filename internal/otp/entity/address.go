package entity

import (
	"net/mail"
	"regexp"
	"strings"
)

var (
	phonePattern  = regexp.MustCompile(`^\+?[0-9]{6,15}$`)
	chatPattern   = regexp.MustCompile(`^-?[0-9]{1,20}$|^@[A-Za-z0-9_]{5,32}$`)
	filePattern   = regexp.MustCompile(`^[A-Za-z0-9._@+-]{1,128}$`)
	nonDigitsOnly = regexp.MustCompile(`[^0-9]`)
)

// ValidAddress reports whether address is usable for channel. FILE addresses
// become object names, so they are restricted to a safe character set.
func ValidAddress(channel Channel, address string) bool {
	switch channel {
	case ChannelEmail:
		a, err := mail.ParseAddress(address)
		return err == nil && a.Address == address
	case ChannelSMS:
		return phonePattern.MatchString(address)
	case ChannelChat:
		return chatPattern.MatchString(address)
	case ChannelFile:
		return filePattern.MatchString(address) && !strings.Contains(address, "..")
	default:
		return false
	}
}

// MaskAddress hides most of a destination for display. Phones keep the last four
// digits and emails keep the first and last character of the local part.
func MaskAddress(channel Channel, address string) string {
	switch channel {
	case ChannelSMS:
		digits := nonDigitsOnly.ReplaceAllString(address, "")
		if len(digits) <= 4 {
			return strings.Repeat("*", len(digits))
		}
		return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
	case ChannelEmail:
		local, domain, ok := strings.Cut(address, "@")
		if !ok {
			return "***"
		}
		if len(local) <= 2 {
			return strings.Repeat("*", len(local)) + "@" + domain
		}
		return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + "@" + domain
	case ChannelChat:
		if len(address) <= 3 {
			return "***"
		}
		return strings.Repeat("*", len(address)-3) + address[len(address)-3:]
	default:
		return address
	}
}
