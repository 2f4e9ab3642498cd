package broadcast

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/cowork/internal/config"
	"github.com/Iron-Ham/cowork/internal/event"
	"github.com/Iron-Ham/cowork/internal/logging"
)

// FromConfig builds a Fanout over the sinks named in cfg.
// The bus sink requires bus to be non-nil.
func FromConfig(ctx context.Context, cfg config.BroadcastConfig, logger *logging.Logger, bus *event.Bus) (*Fanout, error) {
	var sinks []Broadcaster
	for _, name := range cfg.Sinks {
		switch name {
		case "log":
			sinks = append(sinks, NewLog(logger))
		case "bus":
			if bus == nil {
				return nil, fmt.Errorf("broadcast sink %q needs an event bus", name)
			}
			sinks = append(sinks, NewBus(bus))
		case "redis":
			r, err := NewRedis(ctx, cfg.Redis.URL, cfg.Redis.ChannelPrefix)
			if err != nil {
				closeAll(sinks)
				return nil, err
			}
			sinks = append(sinks, r)
		default:
			closeAll(sinks)
			return nil, fmt.Errorf("unknown broadcast sink %q", name)
		}
	}
	return NewFanout(cfg.MaxConcurrency, sinks...), nil
}

func closeAll(sinks []Broadcaster) {
	_ = NewFanout(0, sinks...).Close()
}
