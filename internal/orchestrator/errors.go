package orchestrator

import "errors"

// ErrInvalidInput is the sentinel Store returns for spec.md §7's InvalidInput
// class (empty content). Retrieve has no error return and does not reject a
// malformed request: non-positive MaxResults/MaxTokens and an empty Strategy
// fall back to the configured defaults. Optional-backend problems degrade to
// empty components instead of failing either call, per the propagation policy.
var ErrInvalidInput = errors.New("orchestrator: invalid input")
