package queuethrottle

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/queuethrottle/core"
	"github.com/yourusername/queuethrottle/store"
)

// Deps are the collaborators shared by gates created outside an Orchestrator.
// Zero fields are filled with defaults: an in-memory store, NewConfig(),
// a disabled logger and time.Now.
type Deps struct {
	Store  store.Store
	Config *Config
	Logger zerolog.Logger
	Now    func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Store == nil {
		d.Store = store.NewMemoryStore()
	}
	if d.Config == nil {
		d.Config = NewConfig()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

func (d Deps) keys() core.KeyBuilder {
	return core.NewKeyBuilder(d.Config.KeyPrefix)
}
