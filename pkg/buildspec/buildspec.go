// Package buildspec models the declarative build description for the native
// operator library: a set of compilation targets wired to an external ML
// framework's headers, with compiler flags conditioned on the host platform.
// The registry only describes the build; running the toolchain is the
// consumer's job.
package buildspec

import (
	"io/ioutil"
	"sort"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/modelgarden/registry/pkg/check"
)

// Platform names a host platform flag set.
type Platform string

// The platforms a flag set can be conditioned on. PlatformDefault is the
// POSIX fallback used when no more specific set matches.
const (
	PlatformDefault Platform = "default"
	PlatformWindows Platform = "windows"
)

// TargetKind describes what a target compiles into.
type TargetKind string

// The supported target kinds: a static helper library and a loadable
// operator shared object.
const (
	StaticLibrary TargetKind = "static_library"
	SharedObject  TargetKind = "shared_object"
)

var knownKinds = []string{string(StaticLibrary), string(SharedObject)}

// FlagSet groups the compiler configuration applied on one host platform.
type FlagSet struct {
	Copts   []string `json:"copts,omitempty"`
	Defines []string `json:"defines,omitempty"`
}

// Target is one compilation target of the native operator build.
type Target struct {
	Name    string     `json:"name"`
	Kind    TargetKind `json:"kind"`
	Srcs    []string   `json:"srcs"`
	Hdrs    []string   `json:"hdrs,omitempty"`
	Deps    []string   `json:"deps,omitempty"`
	Copts   []string   `json:"copts,omitempty"`
	Defines []string   `json:"defines,omitempty"`

	// PlatformFlags holds the flag sets selected by the host platform switch.
	PlatformFlags map[Platform]FlagSet `json:"platform_flags,omitempty"`
}

// Validate implements the check.Validatable interface.
func (t Target) Validate() []error {
	return []error{
		check.NotEmpty(t.Name, "target name is required"),
		check.In(string(t.Kind), knownKinds, "unknown target kind for %q", t.Name),
		check.True(len(t.Srcs) > 0, "target %q must list at least one source", t.Name),
	}
}

// EffectiveCopts resolves the compiler flags of the target for the given
// platform: common flags first, then the platform set, falling back to the
// default set for platforms without one. Declaration order is preserved.
func (t Target) EffectiveCopts(platform Platform) []string {
	flagSet, ok := t.PlatformFlags[platform]
	if !ok {
		flagSet = t.PlatformFlags[PlatformDefault]
	}

	copts := make([]string, 0, len(t.Copts)+len(t.Defines)+len(flagSet.Copts)+len(flagSet.Defines))
	copts = append(copts, t.Copts...)
	copts = append(copts, renderDefines(platform, t.Defines)...)
	copts = append(copts, flagSet.Copts...)
	copts = append(copts, renderDefines(platform, flagSet.Defines)...)
	return copts
}

// renderDefines renders preprocessor defines in the host toolchain's syntax;
// MSVC takes /D where everything else takes -D.
func renderDefines(platform Platform, defines []string) []string {
	prefix := "-D"
	if platform == PlatformWindows {
		prefix = "/D"
	}
	rendered := make([]string, 0, len(defines))
	for _, define := range defines {
		rendered = append(rendered, prefix+define)
	}
	return rendered
}

// Spec is the whole build description.
type Spec struct {
	Targets []Target `json:"targets"`
}

// Parse decodes a build description from YAML or JSON bytes.
func Parse(bs []byte) (*Spec, error) {
	spec := &Spec{}
	if err := yaml.Unmarshal(bs, spec, yaml.DisallowUnknownFields); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal build spec")
	}
	return spec, nil
}

// Load reads and decodes a build description from a file.
func Load(path string) (*Spec, error) {
	bs, err := ioutil.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrap(err, "error reading build spec file")
	}
	return Parse(bs)
}

// Target returns the named target, or nil if it is not declared.
func (s *Spec) Target(name string) *Target {
	for i := range s.Targets {
		if s.Targets[i].Name == name {
			return &s.Targets[i]
		}
	}
	return nil
}

// TargetNames returns the declared target names, sorted.
func (s *Spec) TargetNames() []string {
	names := make([]string, 0, len(s.Targets))
	for _, target := range s.Targets {
		names = append(names, target.Name)
	}
	sort.Strings(names)
	return names
}

// Validate implements the check.Validatable interface. Cross-target rules
// live here; per-target rules are on Target.
func (s Spec) Validate() []error {
	var errs []error
	seen := map[string]bool{}
	for _, target := range s.Targets {
		if seen[target.Name] {
			errs = append(errs, errors.Errorf("duplicate target name %q", target.Name))
		}
		seen[target.Name] = true
	}
	for _, target := range s.Targets {
		for _, dep := range target.Deps {
			if !seen[dep] {
				errs = append(errs, errors.Errorf(
					"target %q depends on undeclared target %q", target.Name, dep))
			}
		}
	}
	if err := s.checkCycles(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (s Spec) checkCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := map[string]int{}

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return errors.Errorf("dependency cycle through target %q", name)
		case done:
			return nil
		}
		state[name] = visiting
		if target := s.Target(name); target != nil {
			for _, dep := range target.Deps {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		state[name] = done
		return nil
	}

	for _, target := range s.Targets {
		if err := visit(target.Name); err != nil {
			return err
		}
	}
	return nil
}
