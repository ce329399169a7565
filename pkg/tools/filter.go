package tools

// FilterDefinitions returns the definitions whose names are in allowed, in
// their original order. An empty allowed list keeps every definition.
func FilterDefinitions(defs []Definition, allowed []string) []Definition {
	if len(allowed) == 0 {
		return defs
	}

	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		set[name] = true
	}

	var out []Definition
	for _, d := range defs {
		if set[d.Name] {
			out = append(out, d)
		}
	}
	return out
}
