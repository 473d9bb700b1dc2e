package gpu

import (
	"context"
	"strings"
	"sync"

	"codeberg.org/mutker/nvidiapl/internal/smi"
)

type fakeReader struct {
	mu        sync.Mutex
	name      string
	nameErr   error
	limits    PowerLimits
	limitsErr error
	stats     []Stats
	statsErr  []error
	calls     int
}

func (f *fakeReader) Name(context.Context) (string, error) {
	return f.name, f.nameErr
}

func (f *fakeReader) PowerLimits(context.Context) (PowerLimits, error) {
	return f.limits, f.limitsErr
}

// Stats replays the configured readings in order, repeating the last one
func (f *fakeReader) Stats(context.Context) (Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++

	var err error
	if len(f.statsErr) > 0 {
		err = f.statsErr[min(i, len(f.statsErr)-1)]
	}
	if err != nil {
		return Stats{}, err
	}
	if len(f.stats) == 0 {
		return Stats{}, nil
	}

	return f.stats[min(i, len(f.stats)-1)], nil
}

func (f *fakeReader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

// scriptedRunner answers by the first tool argument
type scriptedRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	calls   []smi.Invocation
}

func (r *scriptedRunner) Run(_ context.Context, inv smi.Invocation) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, inv)

	key := strings.Join(inv.Args, " ")
	for prefix, err := range r.errs {
		if strings.HasPrefix(key, prefix) {
			return nil, err
		}
	}
	for prefix, out := range r.outputs {
		if strings.HasPrefix(key, prefix) {
			return []byte(out), nil
		}
	}

	return nil, nil
}
