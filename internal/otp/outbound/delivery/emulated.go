package delivery

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/onetime/internal/otp/entity"
)

// Emulated accepts every code without sending it. It stands in for gateways
// that are not configured in test environments.
type Emulated struct {
	channel entity.Channel
}

func NewEmulated(channel entity.Channel) *Emulated {
	return &Emulated{channel: channel}
}

func (e *Emulated) Send(ctx context.Context, address, _ string) error {
	slog.InfoContext(ctx, "code delivery emulated", "channel", e.channel.String(), "destination", entity.MaskAddress(e.channel, address))
	return nil
}
