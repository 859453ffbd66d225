package realm

import (
	"fmt"
	"sort"
	"strings"
)

// Profile is a nested krb5 configuration profile: section -> name -> value.
// Values may be strings, []string (repeated name), nested Profiles
// (subsections rendered in braces), or nil (name omitted).
//
// String values support placeholder substitution: $realm, $tmpdir,
// $hostname, and $port0 through $port9 expand to the live realm's values
// when the profile is rendered.
type Profile map[string]any

// mergeProfiles deep-merges overlay into base and returns the result.
// Neither input is mutated. Scalar and list values in overlay replace the
// base value; nested profiles merge recursively; an explicit nil in overlay
// removes nothing but overrides a base scalar with nil (dropping the line).
func mergeProfiles(base, overlay Profile) Profile {
	if len(overlay) == 0 {
		return cloneProfile(base)
	}
	if len(base) == 0 {
		return cloneProfile(overlay)
	}

	result := cloneProfile(base)
	for key, overlayVal := range overlay {
		baseVal, exists := result[key]
		if !exists || overlayVal == nil {
			result[key] = cloneValue(overlayVal)
			continue
		}
		baseMap, baseIsMap := asProfile(baseVal)
		overlayMap, overlayIsMap := asProfile(overlayVal)
		if baseIsMap && overlayIsMap {
			result[key] = mergeProfiles(baseMap, overlayMap)
			continue
		}
		result[key] = cloneValue(overlayVal)
	}
	return result
}

func cloneProfile(p Profile) Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Profile:
		return cloneProfile(val)
	case map[string]any:
		return cloneProfile(Profile(val))
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// asProfile normalizes Profile and plain map[string]any values, the latter
// appearing when overlays come from YAML config files.
func asProfile(v any) (Profile, bool) {
	switch val := v.(type) {
	case Profile:
		return val, true
	case map[string]any:
		return Profile(val), true
	default:
		return nil, false
	}
}

// renderProfile serializes a profile in krb5.conf syntax, applying the
// subst function to every name and string value. Keys are emitted in
// sorted order so generated files are stable across runs.
func renderProfile(p Profile, subst func(string) string) (string, error) {
	var b strings.Builder
	for _, section := range sortedKeys(p) {
		contents, ok := asProfile(p[section])
		if !ok {
			return "", fmt.Errorf("profile section %q is not a map", section)
		}
		fmt.Fprintf(&b, "[%s]\n", section)
		if err := renderSection(&b, contents, subst, 1); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func renderSection(b *strings.Builder, contents Profile, subst func(string) string, depth int) error {
	indent := strings.Repeat("\t", depth)
	for _, name := range sortedKeys(contents) {
		key := subst(name)
		switch value := contents[name].(type) {
		case nil:
			// omitted
		case string:
			fmt.Fprintf(b, "%s%s = %s\n", indent, key, subst(value))
		case []string:
			for _, item := range value {
				fmt.Fprintf(b, "%s%s = %s\n", indent, key, subst(item))
			}
		case Profile, map[string]any:
			sub, _ := asProfile(value)
			fmt.Fprintf(b, "%s%s = {\n", indent, key)
			if err := renderSection(b, sub, subst, depth+1); err != nil {
				return err
			}
			fmt.Fprintf(b, "%s}\n", indent)
		default:
			return fmt.Errorf("profile value at key %q has unsupported type %T", name, value)
		}
	}
	return nil
}

func sortedKeys(p Profile) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
