package native

import (
	"log/slog"

	"github.com/gogpu/rhi"
)

// logger returns the device logger: the one given with WithLogger, else
// the rhi package logger at call time.
func (d *Device) logger() *slog.Logger {
	if d.opts.logger != nil {
		return d.opts.logger
	}
	return rhi.Logger()
}
