package buildsys

import "context"

// BuildSystem captures the lifecycle shared by the external build systems a
// native build drives. Implementations never touch the process environment:
// variables set with Env apply only to the processes they spawn.
type BuildSystem interface {
	// Basic paths.
	Source(dir string)

	// Environment helper.
	Env(key, val string)

	// Lifecycle.
	Configure(ctx context.Context, args ...string) error
	Build(ctx context.Context, args ...string) error

	// Where artifacts land.
	OutputDir() string
}
