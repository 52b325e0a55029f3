package buildspec

import (
	"strings"

	"github.com/pkg/errors"
)

// CompileCommand is the rendered toolchain invocation for one target.
type CompileCommand struct {
	Target  string `json:"target"`
	Command string `json:"command"`
}

func compilerFor(platform Platform) string {
	if platform == PlatformWindows {
		return "cl"
	}
	return "c++"
}

func (t Target) outputName(platform Platform) string {
	switch t.Kind {
	case SharedObject:
		if platform == PlatformWindows {
			return t.Name + ".dll"
		}
		return t.Name + ".so"
	default:
		if platform == PlatformWindows {
			return t.Name + ".lib"
		}
		return "lib" + t.Name + ".a"
	}
}

// CompileCommands renders one toolchain invocation per target for the given
// platform, dependencies before their dependents. The commands are
// descriptive output for the external build driver; nothing is executed here.
func (s *Spec) CompileCommands(platform Platform) ([]CompileCommand, error) {
	if err := s.checkCycles(); err != nil {
		return nil, err
	}

	ordered, err := s.dependencyOrder()
	if err != nil {
		return nil, err
	}

	commands := make([]CompileCommand, 0, len(ordered))
	for _, target := range ordered {
		parts := []string{compilerFor(platform)}
		parts = append(parts, target.EffectiveCopts(platform)...)
		if target.Kind == SharedObject && platform != PlatformWindows {
			parts = append(parts, "-shared", "-fPIC")
		}
		parts = append(parts, target.Srcs...)
		for _, dep := range target.Deps {
			parts = append(parts, s.Target(dep).outputName(platform))
		}
		parts = append(parts, "-o", target.outputName(platform))
		commands = append(commands, CompileCommand{
			Target:  target.Name,
			Command: strings.Join(parts, " "),
		})
	}
	return commands, nil
}

// dependencyOrder returns the targets such that every target appears after
// all of its dependencies.
func (s *Spec) dependencyOrder() ([]Target, error) {
	var ordered []Target
	placed := map[string]bool{}

	var place func(name string) error
	place = func(name string) error {
		if placed[name] {
			return nil
		}
		target := s.Target(name)
		if target == nil {
			return errors.Errorf("undeclared target %q", name)
		}
		placed[name] = true
		for _, dep := range target.Deps {
			if err := place(dep); err != nil {
				return err
			}
		}
		ordered = append(ordered, *target)
		return nil
	}

	for _, target := range s.Targets {
		if err := place(target.Name); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
