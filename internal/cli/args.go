package cli

import (
	"fmt"
	"strings"
)

// defaultTask запускается, если задача не указана.
const defaultTask = "default"

// runArgs — разобранные аргументы run и trigger.
type runArgs struct {
	Tasks   []string
	Options map[string]string

	// Глобальные флаги, встреченные среди аргументов.
	Config string
	JSON   bool
	Help   bool
}

// parseRunArgs разбирает аргументы run:
//
//	--key=value  → Options[key] = value
//	--key        → Options[key] = "true"
//	--no-key     → Options[key] = "false"
//	--           → всё дальше считается именами задач
//
// --config, --json и --help обрабатываются как флаги CLI.
// Без задач подставляется "default".
func parseRunArgs(args []string) (*runArgs, error) {
	ra := &runArgs{Options: make(map[string]string)}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "--":
			ra.Tasks = append(ra.Tasks, args[i+1:]...)
			i = len(args)
			continue
		case arg == "-h" || arg == "--help":
			ra.Help = true
			continue
		case strings.HasPrefix(arg, "--"):
		case strings.HasPrefix(arg, "-") && arg != "-":
			return nil, fmt.Errorf("unknown shorthand flag %q: options are passed as --key=value", arg)
		default:
			ra.Tasks = append(ra.Tasks, arg)
			continue
		}

		key, value, hasValue := strings.Cut(arg[2:], "=")
		if key == "" {
			return nil, fmt.Errorf("invalid option %q", arg)
		}

		switch key {
		case "config":
			if !hasValue {
				if i+1 >= len(args) {
					return nil, fmt.Errorf("flag --config needs a value")
				}
				i++
				value = args[i]
			}
			ra.Config = value
			continue
		case "json":
			ra.JSON = !hasValue || value == "true"
			continue
		}

		if !hasValue {
			value = "true"
			if name, ok := strings.CutPrefix(key, "no-"); ok && name != "" {
				key, value = name, "false"
			}
		}
		ra.Options[key] = value
	}

	if len(ra.Tasks) == 0 {
		ra.Tasks = []string{defaultTask}
	}
	return ra, nil
}
