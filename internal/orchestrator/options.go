package orchestrator

// RetryPolicy controls whether a failed task automatically re-enters
// pending. MaxAttempts counts every time the task enters pending,
// including the first.
type RetryPolicy struct {
	// Enabled turns automatic retry on.
	Enabled bool
	// MaxAttempts is the total number of pending entries allowed.
	MaxAttempts int
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	clock       Clock
	notifier    Notifier
	matchPolicy MatchPolicy
	retry       RetryPolicy
	logger      *DebugLogger
}

// WithClock sets the timestamp source. Mainly for deterministic tests.
func WithClock(c Clock) Option {
	return func(o *orchestratorOptions) { o.clock = c }
}

// WithNotifier sets the event notifier the engine publishes through.
func WithNotifier(n Notifier) Option {
	return func(o *orchestratorOptions) { o.notifier = n }
}

// WithMatchPolicy sets the capability matcher policy.
func WithMatchPolicy(p MatchPolicy) Option {
	return func(o *orchestratorOptions) { o.matchPolicy = p }
}

// WithRetryPolicy sets the automatic retry policy for failed tasks.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *orchestratorOptions) { o.retry = p }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}
