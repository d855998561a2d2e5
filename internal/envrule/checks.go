package envrule

import (
	"fmt"
	"strings"

	"servicenow-cmdb-integration/internal/classifier"
	"servicenow-cmdb-integration/internal/rule"
	"servicenow-cmdb-integration/internal/taskerr"
)

func checkExistence(names []string, groups map[string]*classifier.Group) error {
	var missing []string
	for _, name := range names {
		if _, ok := groups[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return taskerr.Validation(
		fmt.Sprintf("Passed-in nonexistent groups %s", strings.Join(missing, ", ")),
		map[string]interface{}{"nonexistent_groups": missing},
	)
}

// checkEligibility rejects groups that are not environment groups.
func checkEligibility(names []string, groups map[string]*classifier.Group) error {
	var ineligible []string
	for _, name := range names {
		if !groups[name].EnvironmentTrumps {
			ineligible = append(ineligible, name)
		}
	}
	if len(ineligible) == 0 {
		return nil
	}
	return taskerr.Validation(
		fmt.Sprintf("Passed-in non-Environment groups %s", strings.Join(ineligible, ", ")),
		map[string]interface{}{"non_environment_groups": ineligible},
	)
}

// checkRules rejects groups whose rule cannot take an extra OR-ed condition.
// The message lists api_managed groups before and_rule groups.
func checkRules(names []string, groups map[string]*classifier.Group) error {
	details := make(map[string]interface{})
	byReason := map[string][]string{}
	for _, name := range names {
		reason := rule.ShapeViolation(groups[name].Rule)
		if reason == "" {
			continue
		}
		details[name] = reason
		byReason[reason] = append(byReason[reason], name)
	}
	if len(details) == 0 {
		return nil
	}

	var parts []string
	for _, reason := range []string{rule.ReasonAPIManaged, rule.ReasonAndRule} {
		for _, name := range byReason[reason] {
			parts = append(parts, fmt.Sprintf("'%s' (%s)", name, reason))
		}
	}
	return taskerr.Validation(
		fmt.Sprintf("Invalid rule detected in groups %s", strings.Join(parts, ", ")),
		details,
	)
}
