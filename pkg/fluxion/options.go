package fluxion

import "strconv"

// Option is a functional option shared by signal, memo, and reaction
// constructors.
type Option func(*options)

// options holds construction-time configuration.
type options struct {
	// name is the debug label used in error reports, hooks, and logs.
	name string

	// onError is a per-reaction error handler installed at creation so it
	// covers the first run. Ignored by signals and memos.
	onError func(error)
}

// WithName sets the debug label for a signal, memo, or reaction.
// Unnamed primitives get a generated label like "reaction@42".
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithOnError installs a per-reaction error handler at creation, so it also
// covers the reaction's first run. Equivalent to calling OnError on the
// returned handle, which would only cover subsequent runs.
func WithOnError(handler func(error)) Option {
	return func(o *options) {
		o.onError = handler
	}
}

// applyOptions applies the given options and returns the resulting config.
func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// fallbackName builds the generated debug label for an unnamed primitive.
func fallbackName(kind string, id uint64) string {
	return kind + "@" + strconv.FormatUint(id, 10)
}
