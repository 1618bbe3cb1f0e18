package rbac

// manageUpgradeThreshold is the number of distinct granular actions on one
// category/resource pair that collapse into manage.
const manageUpgradeThreshold = 3

// MergePermissions collapses permissions addressing the same
// category/resource pair into the most permissive single record. Input order
// matters: the first record for a key is kept unless it is replaced by a
// manage grant or upgraded.
func MergePermissions(permissions []Permission) []Permission {
	merged := make(map[string]Permission, len(permissions))
	order := make([]string, 0, len(permissions))
	actionsSeen := make(map[string]map[Action]struct{}, len(permissions))

	for _, p := range permissions {
		key := p.Key()
		existing, ok := merged[key]
		if !ok {
			order = append(order, key)
		}
		seen := actionsSeen[key]
		if seen == nil {
			seen = make(map[Action]struct{}, manageUpgradeThreshold)
			actionsSeen[key] = seen
		}

		switch {
		case !ok || p.Action == ActionManage:
			merged[key] = p
			seen[p.Action] = struct{}{}
		case existing.Action != ActionManage:
			seen[existing.Action] = struct{}{}
			seen[p.Action] = struct{}{}
			if len(seen) >= manageUpgradeThreshold {
				upgraded := p
				upgraded.Action = ActionManage
				merged[key] = upgraded
			}
		}
	}

	out := make([]Permission, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out
}
