package preflight

// Plan selects the startup checks run by Run. Checks that depend on the
// source being present are not part of it: a missing source is a per-pass
// condition, not a startup failure.
type Plan struct {
	TargetAccessible   bool
	TargetWriteable    bool
	PathNesting        bool
	EnsureTargetExists bool

	DryRun bool
}
