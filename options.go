package calc

import (
	"runtime"

	"dario.cat/mergo"
	"go.alis.build/alog"
)

// Options configures an Engine
type Options struct {
	// Workers bounds the cells evaluated concurrently by Recalculate.
	Workers int
	// MaxDepth bounds how deep formula cells may reference other formula
	// cells within one evaluation. deeper chains come out #CALC!.
	MaxDepth int
	Clock    Clock
	Random   RandomGenerator
	Registry *Registry
	// LogLevel, when set, is applied process wide through alog.SetLevel.
	LogLevel *alog.LogLevel
}

// Option is a functional option for NewEngine
type Option func(*Options)

// DefaultOptions returns the options used for any field left unset
func DefaultOptions() Options {
	return Options{
		Workers:  runtime.GOMAXPROCS(0),
		MaxDepth: 8192,
		Clock:    WallClock{},
		Random:   DefaultRandomGenerator{},
		Registry: sharedDefaultRegistry(),
	}
}

func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

func WithMaxDepth(depth int) Option {
	return func(o *Options) { o.MaxDepth = depth }
}

func WithClock(clock Clock) Option {
	return func(o *Options) { o.Clock = clock }
}

func WithRandom(random RandomGenerator) Option {
	return func(o *Options) { o.Random = random }
}

// WithRegistry replaces the built-in function library
func WithRegistry(registry *Registry) Option {
	return func(o *Options) { o.Registry = registry }
}

func WithLogLevel(level alog.LogLevel) Option {
	return func(o *Options) { o.LogLevel = &level }
}

// resolveOptions applies opts and fills every zero field from the defaults
func resolveOptions(opts ...Option) (Options, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if err := mergo.Merge(&o, DefaultOptions()); err != nil {
		return Options{}, wrapApplicationError(Internal, err, "merging engine options")
	}
	if o.Workers < 0 || o.MaxDepth < 0 {
		return Options{}, NewApplicationError(InvalidArgument, "workers and max depth must not be negative")
	}
	return o, nil
}
