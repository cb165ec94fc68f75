package engine

import "strings"

// GetNewUniquePluginName derives a client name no existing plugin uses.
// The base is truncated to leave room for a " (NN)" suffix and has ':'
// replaced, since some drivers reserve it to split client and port names.
func (e *Engine) GetNewUniquePluginName(name string) string {
	if name == "" {
		return "(No name)"
	}

	maxLen := e.MaxClientNameSize() - 6
	if len(name) > maxLen {
		name = name[:maxLen]
	}
	name = strings.ReplaceAll(name, ":", ".")

	for e.pluginNameExists(name) {
		name = incrementName(name)
	}
	return name
}

func (e *Engine) pluginNameExists(name string) bool {
	count := e.curPluginCount.Load()
	for i := uint32(0); i < count; i++ {
		plugin := e.slots[i].plugin
		if plugin != nil && plugin.Name() == name {
			return true
		}
	}
	return false
}

func isASCIIDigit(c byte) bool { return c >= '0' && c <= '9' }

// incrementName applies the collision suffix rules: a name without a
// " (N)" suffix gets " (2)"; one- and two-digit suffixes increment in
// place, 9 rolling over to 10. Two-digit wrap past 99 is unspecified.
func incrementName(name string) string {
	n := len(name)

	// 1 digit, ex: " (2)"
	if n >= 4 && name[n-4] == ' ' && name[n-3] == '(' && isASCIIDigit(name[n-2]) && name[n-1] == ')' {
		if name[n-2] == '9' {
			return name[:n-4] + " (10)"
		}
		b := []byte(name)
		b[n-2]++
		return string(b)
	}

	// 2 digits, ex: " (11)"
	if n >= 5 && name[n-5] == ' ' && name[n-4] == '(' && isASCIIDigit(name[n-3]) && isASCIIDigit(name[n-2]) && name[n-1] == ')' {
		b := []byte(name)
		if b[n-2] == '9' {
			b[n-2] = '0'
			b[n-3]++
		} else {
			b[n-2]++
		}
		return string(b)
	}

	return name + " (2)"
}
