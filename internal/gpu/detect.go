package gpu

import (
	"context"

	"codeberg.org/mutker/nvidiapl/internal/errors"
	"codeberg.org/mutker/nvidiapl/internal/logger"
)

// Detector builds the startup snapshot
type Detector struct {
	reader Reader
	logger logger.Logger
}

func NewDetector(reader Reader, log logger.Logger) *Detector {
	if log == nil {
		log = logger.Nop()
	}

	return &Detector{reader: reader, logger: log}
}

// Detect reads the name and power limits, plus a first stats reading when
// one is available. If the name or limits cannot be read it returns the
// placeholder snapshot together with the cause, which callers surface once.
func (d *Detector) Detect(ctx context.Context) (Snapshot, error) {
	errFactory := errors.New()

	name, err := d.reader.Name(ctx)
	if err != nil {
		return Placeholder(), errFactory.Wrap(ErrDetectFailed, err)
	}

	limits, err := d.reader.PowerLimits(ctx)
	if err != nil {
		return Placeholder(), errFactory.Wrap(ErrDetectFailed, err)
	}

	snap := Snapshot{Name: name, Limits: limits}

	stats, err := d.reader.Stats(ctx)
	if err != nil {
		d.logger.Debug().Err(err).Msg("Initial stats unavailable")
	} else {
		snap.ApplyStats(stats)
	}

	d.logger.Debug().
		Str("name", snap.Name).
		Stringer("limits", snap.Limits).
		Float64("current", snap.Limits.Current).
		Float64("default", snap.Limits.Default).
		Msg("GPU detected")

	return snap, nil
}
