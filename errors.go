package archetype

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch reports a value that is not assignable to the declared
	// type of a slot.
	ErrTypeMismatch = errors.New("archetype: type mismatch")
	// ErrInvalidIndex reports a selector that does not address a slot of the
	// node, or a key of a non-comparable type.
	ErrInvalidIndex = errors.New("archetype: invalid index")
	// ErrInvalidOverrideTransition reports an override state change that the
	// state machine does not allow.
	ErrInvalidOverrideTransition = errors.New("archetype: invalid override transition")
	// ErrUnresolvedBase reports a declared base asset that cannot be found.
	ErrUnresolvedBase = errors.New("archetype: unresolved base")
	// ErrOrphanedOverride marks an overridden item whose base counterpart
	// disappeared. It is a reported condition, never a failure.
	ErrOrphanedOverride = errors.New("archetype: orphaned override")
	// ErrBaseCycle reports an asset that is, directly or not, its own base.
	ErrBaseCycle = errors.New("archetype: base cycle")
	// ErrUnknownAsset reports an asset id that is not registered.
	ErrUnknownAsset = errors.New("archetype: unknown asset")
	// ErrDetached reports a node that is released or belongs to another
	// container.
	ErrDetached = errors.New("archetype: detached node")
	// ErrInvalidReference reports a reference slot whose target cannot be
	// resolved inside the container.
	ErrInvalidReference = errors.New("archetype: invalid reference")
)

// GraphError captures the failing operation and slot path alongside the
// originating error.
type GraphError struct {
	Op   string
	Path Path
	Err  error
}

func (e *GraphError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Path) == 0 {
		return fmt.Sprintf("archetype: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("archetype: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *GraphError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsBuildBreaking reports whether err should fail an asset build. Orphaned
// overrides and detached nodes are recoverable, unresolved bases and type
// mismatches are not.
func IsBuildBreaking(err error) bool {
	return errors.Is(err, ErrUnresolvedBase) || errors.Is(err, ErrTypeMismatch)
}

func opError(op string, path Path, err error) error {
	if err == nil {
		return nil
	}
	var graphErr *GraphError
	if errors.As(err, &graphErr) {
		if graphErr.Op == "" {
			graphErr.Op = op
		}
		if len(graphErr.Path) == 0 {
			graphErr.Path = path
		}
		return graphErr
	}
	return &GraphError{Op: op, Path: path, Err: err}
}
