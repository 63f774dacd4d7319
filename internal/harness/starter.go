package harness

import (
	"strings"

	"github.com/philo-groves/fiddlesticks/internal/fidmemory"
	"github.com/philo-groves/fiddlesticks/internal/harnesserr"
)

func feature(id, category, description string, steps ...string) fidmemory.FeatureRecord {
	return fidmemory.FeatureRecord{
		ID:          id,
		Category:    category,
		Description: description,
		Steps:       steps,
	}
}

// starterFeatureList returns the built-in six-feature scaffold used when an
// initializer request supplies no feature list of its own: one feature per
// load-bearing capability a freshly bootstrapped session needs before it can
// start doing real work.
func starterFeatureList(objective string) []fidmemory.FeatureRecord {
	return []fidmemory.FeatureRecord{
		feature(
			"initializer.artifacts",
			"functional",
			"Initializer artifacts exist for objective: "+objective,
			"Create init plan metadata",
			"Create session manifest",
			"Create starter feature list",
		),
		feature(
			"harness.baseline",
			"functional",
			"Baseline harness checks can run before task iterations",
			"Run startup script",
			"Verify workspace status is readable",
			"Record baseline in progress log",
		),
		feature(
			"chat.turn",
			"functional",
			"Chat turn execution path is available",
			"Create a chat session",
			"Run one non-streaming turn",
			"Persist transcript messages",
		),
		feature(
			"chat.streaming",
			"functional",
			"Streaming turn execution emits expected events",
			"Run one streaming turn",
			"Observe text/tool events",
			"Observe terminal turn completion",
		),
		feature(
			"tool.loop",
			"functional",
			"Tool loop executes and feeds results back into model",
			"Register at least one tool",
			"Execute tool call during turn",
			"Confirm follow-up completion",
		),
		feature(
			"quality.regression",
			"quality",
			"Regression test pass status is tracked",
			"Run package-level tests",
			"Capture failures in progress log",
			"Only mark feature pass after verification",
		),
	}
}

// validateFeatureList checks a caller-supplied or starter feature list is
// well-formed before it's handed to InitializeSessionIfMissing: ids are
// present, unique, and every feature has a description, at least one
// validation step, and starts unpassed.
func validateFeatureList(features []fidmemory.FeatureRecord) error {
	if len(features) == 0 {
		return harnesserr.InvalidRequest("feature_list must contain at least one feature")
	}

	seen := make(map[string]bool, len(features))
	for _, f := range features {
		if strings.TrimSpace(f.ID) == "" {
			return harnesserr.InvalidRequest("feature_list entries require non-empty id")
		}
		if seen[f.ID] {
			return harnesserr.InvalidRequest("feature_list contains duplicate id '" + f.ID + "': ids must be unique")
		}
		seen[f.ID] = true

		if strings.TrimSpace(f.Description) == "" {
			return harnesserr.InvalidRequest("feature '" + f.ID + "' must include a non-empty description")
		}
		if len(f.Steps) == 0 {
			return harnesserr.InvalidRequest("feature '" + f.ID + "' must include at least one validation step")
		}
		if f.Passes {
			return harnesserr.InvalidRequest("feature '" + f.ID + "' cannot start with passes=true during initializer phase")
		}
	}
	return nil
}

// buildFeaturePrompt renders the turn prompt for one feature: the
// objective, the feature's identity, and its validation steps as a
// checklist, so the model always sees exactly what "done" means for this
// iteration.
func buildFeaturePrompt(feature fidmemory.FeatureRecord, objective string) string {
	var steps strings.Builder
	for i, step := range feature.Steps {
		if i > 0 {
			steps.WriteByte('\n')
		}
		steps.WriteString("- ")
		steps.WriteString(step)
	}

	var b strings.Builder
	b.WriteString("Objective: ")
	b.WriteString(objective)
	b.WriteString("\n\nWork on one feature incrementally and leave a clean handoff.\n\nFeature: ")
	b.WriteString(feature.ID)
	b.WriteString("\nCategory: ")
	b.WriteString(feature.Category)
	b.WriteString("\nDescription: ")
	b.WriteString(feature.Description)
	b.WriteString("\nValidation steps:\n")
	b.WriteString(steps.String())
	return b.String()
}
