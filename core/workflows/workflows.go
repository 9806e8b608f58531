// Package workflows implements the multi-step operations of a running
// application: authoring entries onto the local chain, holding entries and
// link metadata arriving from peers, removing entries, and querying the
// merged chain/shard view. Each workflow runs its steps strictly in order;
// concurrency lives in the callers that launch them.
package workflows

// Stage labels a hold workflow's progress for logging. A workflow either
// ends Held or in one of the two terminal failure stages.
type Stage string

const (
	StageRequestedPackage   Stage = "requested_package"
	StagePackageReceived    Stage = "package_received"
	StageValidated          Stage = "validated"
	StageHeld               Stage = "held"
	StageInvalid            Stage = "invalid"
	StagePackageUnavailable Stage = "package_unavailable"
)
