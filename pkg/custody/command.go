package custody

// Command represents a discrete application operation with its specific
// configuration. Commands are produced by [Parse] and dispatched by
// [App.Main]; shared settings live in [Config], while each command carries
// only what is specific to it.
type Command interface {
	// Name returns the command identifier used for routing.
	Name() string
}

// RunCommand starts the HTTP server and serves the custody API until the
// context is canceled.
type RunCommand struct{}

func (c *RunCommand) Name() string { return "run" }

// SeedCommand wipes the collections and reloads them from a directory of
// fixture files. Safe to run repeatedly; every run starts from empty.
type SeedCommand struct {
	// Dir is the directory holding the fixture JSON files.
	Dir string
}

func (c *SeedCommand) Name() string { return "seed" }

// CheckCommand scans every child collection for parent references that no
// longer resolve and reports what it finds. The exit status of the process
// reflects the scan result.
type CheckCommand struct{}

func (c *CheckCommand) Name() string { return "check" }
