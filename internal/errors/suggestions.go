package errors

import (
	"fmt"
	"strings"
)

// Suggestion is a hint for fixing an error.
type Suggestion struct {
	Title       string
	Description string
	Command     string
}

// Suggestions returns fixing hints for err based on its code.
func Suggestions(err error) []Suggestion {
	var pe *PrefabError
	if !As(err, &pe) {
		return nil
	}

	switch pe.Code {
	case CodeCycleDetected:
		return []Suggestion{
			{
				Title:       "Break the nesting cycle",
				Description: "A prefab cannot contain itself, directly or through other prefabs. Remove the instance whose source points back up the chain.",
				Command:     "prefab load --format table " + pe.FilePath,
			},
		}
	case CodeInvalidPath:
		return []Suggestion{
			{
				Title:       "Fix the prefab path",
				Description: `Paths must be non-empty, must not end in a separator and must not contain < > : " | ? * or control characters.`,
			},
		}
	case CodeFileRead:
		return []Suggestion{
			{
				Title:       "Check the file exists under a source root",
				Description: "Relative sources are resolved against project.source_roots in order, then project.root.",
				Command:     "prefab config",
			},
		}
	case CodeParse:
		return []Suggestion{
			{
				Title:       "Validate the document syntax",
				Description: "Prefab files are JSON (comments and trailing commas allowed) or YAML, and the top level must be an object.",
			},
		}
	case CodeInvalidInstance:
		return []Suggestion{
			{
				Title:       "Give the instance a source",
				Description: `Every entry of "instances" needs a non-empty string "source" naming the nested prefab.`,
			},
		}
	case CodeNestingTooDeep:
		return []Suggestion{
			{
				Title:       "Raise the nesting limit",
				Description: "Increase loader.max_depth if the hierarchy is intentionally this deep.",
			},
		}
	case CodePathIdentityMismatch:
		return []Suggestion{
			{
				Title:       "Save to the template's own file",
				Description: "A template can only be saved to the file it was loaded from. Use prefab resave without --to.",
			},
		}
	default:
		return nil
	}
}

// FormatSuggestions formats suggestions for terminal output.
func FormatSuggestions(title string, suggestions []Suggestion) string {
	if len(suggestions) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", title)
	for i, s := range suggestions {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s.Title)
		if s.Description != "" {
			fmt.Fprintf(&b, "     %s\n", s.Description)
		}
		if s.Command != "" {
			fmt.Fprintf(&b, "     $ %s\n", s.Command)
		}
	}

	return b.String()
}
