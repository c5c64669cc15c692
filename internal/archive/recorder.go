package archive

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/map-pickban-backend/internal/engine"
)

// Recorder turns completed states into Results and saves them off the lobby
// goroutines. Record never blocks; when the buffer is full the result is
// dropped and logged.
type Recorder struct {
	store   Store
	queue   chan Result
	log     *zap.Logger
	now     func() time.Time
	timeout time.Duration
}

func NewRecorder(store Store, buffer int, log *zap.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		store:   store,
		queue:   make(chan Result, buffer),
		log:     log,
		now:     time.Now,
		timeout: 5 * time.Second,
	}
}

// Record is shaped to be a lobby completion hook.
func (r *Recorder) Record(s engine.State) {
	res := ResultFromState(s, r.now())
	select {
	case r.queue <- res:
	default:
		r.log.Warn("archive queue full, dropping result", zap.String("code", res.Code))
	}
}

// Run saves queued results until ctx is done, then drains what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case res := <-r.queue:
			r.save(res)
		case <-ctx.Done():
			for {
				select {
				case res := <-r.queue:
					r.save(res)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Recorder) save(res Result) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.Save(ctx, res); err != nil {
		r.log.Error("archive save failed", zap.String("code", res.Code), zap.Error(err))
		return
	}
	r.log.Info("result archived",
		zap.String("code", res.Code),
		zap.Int("entries", len(res.Chosen)))
}
