package scheduler

import (
	"fmt"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"

	"github.com/scusemua/notebook-runtime/common/utils/hashmap"
)

// Factory creates schedulers by name and owns them until they are removed or the factory is destroyed.
type Factory struct {
	log logger.Logger

	historySize int
	schedulers  *hashmap.ConcurrentMap[string, Scheduler]
}

func NewFactory(historySize int) *Factory {
	f := &Factory{
		historySize: historySize,
		schedulers:  hashmap.NewConcurrentMap[Scheduler](),
	}
	config.InitLogger(&f.log, f)
	return f
}

// CreateOrGetScheduler returns the scheduler registered under name, creating it with create if there is
// none. create is called at most once per name.
func (f *Factory) CreateOrGetScheduler(name string, create func(name string, historySize int) Scheduler) Scheduler {
	s, loaded := f.schedulers.LoadOrCompute(name, func() Scheduler {
		return create(name, f.historySize)
	})
	if !loaded {
		f.log.Debug("Created scheduler \"%s\".", name)
	}
	return s
}

func (f *Factory) CreateOrGetFIFOScheduler(name string) Scheduler {
	return f.CreateOrGetScheduler(name, func(name string, historySize int) Scheduler {
		return NewFIFOScheduler(name, historySize)
	})
}

func (f *Factory) CreateOrGetParallelScheduler(name string, maxConcurrency int) Scheduler {
	return f.CreateOrGetScheduler(name, func(name string, historySize int) Scheduler {
		return NewParallelScheduler(name, maxConcurrency, historySize)
	})
}

func (f *Factory) CreateOrGetRemoteScheduler(name string, maxInFlight int, status StatusFunc, pollInterval time.Duration) Scheduler {
	return f.CreateOrGetScheduler(name, func(name string, historySize int) Scheduler {
		return NewRemoteScheduler(name, maxInFlight, historySize, status, pollInterval)
	})
}

func (f *Factory) Get(name string) (Scheduler, bool) {
	return f.schedulers.Load(name)
}

// Names returns the names of all live schedulers.
func (f *Factory) Names() []string {
	return f.schedulers.Keys()
}

// RemoveScheduler stops and forgets the scheduler registered under name.
func (f *Factory) RemoveScheduler(name string) bool {
	s, ok := f.schedulers.LoadAndDelete(name)
	if !ok {
		return false
	}

	s.Stop()
	f.log.Debug("Removed scheduler \"%s\".", name)
	return true
}

// Destroy stops every scheduler created by the factory.
func (f *Factory) Destroy() {
	for _, name := range f.schedulers.Keys() {
		f.RemoveScheduler(name)
	}
}

func (f *Factory) String() string {
	return fmt.Sprintf("SchedulerFactory[schedulers=%d]", f.schedulers.Len())
}
