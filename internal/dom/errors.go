// internal/dom/errors.go
package dom

import (
	"errors"
	"fmt"
)

var (
	ErrNodeDeallocated = errors.New("node deallocated")
	ErrSameNodeAlias   = errors.New("paired mutable access to a single node")
	ErrInvalidParent   = errors.New("parent does not resolve")
	ErrEmptySourceTree = errors.New("source tree has no children")
	ErrAlreadyAttached = errors.New("node already has a parent")
	ErrNotChild        = errors.New("node is not a child of the given parent")
	ErrCycle           = errors.New("attachment would create a cycle")
	ErrRootDetach      = errors.New("the root cannot be detached or freed")
	ErrRootAttach      = errors.New("the root cannot be attached under another node")
	ErrLayoutAttached  = errors.New("layout handle is already attached to a parent")
	ErrNoDocument      = errors.New("tree has no document node")
)

// Error records the operation and node a failure occurred on. Use errors.Is with
// the sentinels above to classify it.
type Error struct {
	Op  string
	ID  NodeID
	Err error
}

func (e *Error) Error() string {
	if e.ID.IsNil() {
		return fmt.Sprintf("dom: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("dom: %s %s: %v", e.Op, e.ID, e.Err)
}

// Unwrap provides the underlying error for use with errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op string, id NodeID, err error) error {
	return &Error{Op: op, ID: id, Err: err}
}
