package gate

import (
	"fmt"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// remediationComplexityBoost is the ComplexityScore assigned to a
// synthesized remediation task so the Scheduler's complexity_bias term
// pushes it ahead of ordinary pending work, approximating the "priority
// boosted" requirement without a separate priority field on Task.
const remediationComplexityBoost = 10

// NewRemediationTask synthesizes the task a blocking finding forces into
// existence: type remediation, parented to the offending task, its
// description derived from the finding, pending and priority-boosted.
func NewRemediationTask(id core.TaskID, parent *core.Task, finding BypassFinding) *core.Task {
	t := core.NewTask(id, fmt.Sprintf("remediate %s on %s", finding.Code, parent.ID), parent.Phase)
	t.WithKind(core.KindRemediation).WithParent(parent.ID)
	t.Description = finding.Message
	t.ComplexityScore = remediationComplexityBoost
	return t
}

// BlockOnRemediation records remediation as a dependency of parent, so
// the Scheduler will not consider parent ready again until it completes,
// and transitions parent to blocked.
func BlockOnRemediation(parent, remediation *core.Task) error {
	alreadyDependent := false
	for _, dep := range parent.Dependencies {
		if dep == remediation.ID {
			alreadyDependent = true
			break
		}
	}
	if !alreadyDependent {
		parent.Dependencies = append(parent.Dependencies, remediation.ID)
	}
	return parent.MarkBlocked(fmt.Sprintf("blocked by remediation task %s", remediation.ID))
}
