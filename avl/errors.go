package avl

import (
	"github.com/pkg/errors"

	"github.com/arborix-db/pmtree/internal/pmerrors"
)

// errUnresolvedReference reports a non-empty reference that failed to
// resolve during a tree operation.
var errUnresolvedReference = errors.Wrap(pmerrors.ErrInvariantViolation, "avl: non-empty reference failed to resolve")
