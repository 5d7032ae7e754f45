package rclone

import "strings"

var sensitiveMarkers = []string{"pass", "secret", "token", "key"}

// RedactArgs masks the value of every `name=value` argument whose text
// mentions a credential, e.g. `pass=hunter2` becomes `pass=***`.
func RedactArgs(argv []string) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		out[i] = redactArg(arg)
	}
	return out
}

func redactArg(arg string) string {
	name, _, found := strings.Cut(arg, "=")
	if !found {
		return arg
	}

	lower := strings.ToLower(arg)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(lower, marker) {
			return name + "=***"
		}
	}
	return arg
}
