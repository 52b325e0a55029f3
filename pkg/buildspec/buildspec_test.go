package buildspec

import (
	"testing"

	"gotest.tools/assert"

	"github.com/modelgarden/registry/pkg/check"
)

const operatorSpec = `
targets:
  - name: training_op_helpers
    kind: static_library
    srcs: [kernels/box_util.cc]
    hdrs: [kernels/box_util.h]
    copts: [-std=c++14]
    platform_flags:
      default:
        copts: [-pthread]
      windows:
        copts: [/wd4018, /wd4267]
        defines: [NOMINMAX, WIN32_LEAN_AND_MEAN]
  - name: _garden_ops
    kind: shared_object
    srcs:
      - kernels/pairwise_iou_kernel.cc
      - ops/pairwise_iou_op.cc
    deps: [training_op_helpers]
    defines: [EIGEN_MAX_ALIGN_BYTES=64]
`

func mustParse(t *testing.T, raw string) *Spec {
	spec, err := Parse([]byte(raw))
	assert.NilError(t, err)
	return spec
}

func TestParseAndValidate(t *testing.T) {
	spec := mustParse(t, operatorSpec)
	assert.NilError(t, check.Validate(spec))
	assert.DeepEqual(t, spec.TargetNames(), []string{"_garden_ops", "training_op_helpers"})
	assert.Assert(t, spec.Target("training_op_helpers") != nil)
	assert.Assert(t, spec.Target("missing") == nil)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("targets:\n  - name: x\n    kidn: static_library\n"))
	assert.ErrorContains(t, err, "cannot unmarshal build spec")
}

func TestEffectiveCopts(t *testing.T) {
	spec := mustParse(t, operatorSpec)
	helpers := spec.Target("training_op_helpers")

	assert.DeepEqual(t, helpers.EffectiveCopts(PlatformDefault),
		[]string{"-std=c++14", "-pthread"})
	assert.DeepEqual(t, helpers.EffectiveCopts(PlatformWindows),
		[]string{"-std=c++14", "/wd4018", "/wd4267", "/DNOMINMAX", "/DWIN32_LEAN_AND_MEAN"})

	// Platforms with no flag set of their own fall back to the default set.
	assert.DeepEqual(t, helpers.EffectiveCopts(Platform("darwin")),
		[]string{"-std=c++14", "-pthread"})

	ops := spec.Target("_garden_ops")
	assert.DeepEqual(t, ops.EffectiveCopts(PlatformDefault),
		[]string{"-DEIGEN_MAX_ALIGN_BYTES=64"})
	assert.DeepEqual(t, ops.EffectiveCopts(PlatformWindows),
		[]string{"/DEIGEN_MAX_ALIGN_BYTES=64"})
}

func TestValidationFailures(t *testing.T) {
	spec := mustParse(t, operatorSpec)
	spec.Targets = append(spec.Targets, Target{
		Name: "training_op_helpers",
		Kind: StaticLibrary,
		Srcs: []string{"dup.cc"},
	})
	assert.ErrorContains(t, check.Validate(spec), `duplicate target name "training_op_helpers"`)

	spec = mustParse(t, operatorSpec)
	spec.Targets[1].Deps = []string{"framework_headers"}
	assert.ErrorContains(t, check.Validate(spec),
		`target "_garden_ops" depends on undeclared target "framework_headers"`)

	spec = mustParse(t, operatorSpec)
	spec.Targets[0].Srcs = nil
	assert.ErrorContains(t, check.Validate(spec), "must list at least one source")

	spec = mustParse(t, operatorSpec)
	spec.Targets[0].Kind = "binary"
	assert.ErrorContains(t, check.Validate(spec), "unknown target kind")
}

func TestCycleDetection(t *testing.T) {
	spec := mustParse(t, operatorSpec)
	spec.Targets[0].Deps = []string{"_garden_ops"}
	assert.ErrorContains(t, check.Validate(spec), "dependency cycle through target")

	_, err := spec.CompileCommands(PlatformDefault)
	assert.ErrorContains(t, err, "dependency cycle through target")
}

func TestCompileCommands(t *testing.T) {
	spec := mustParse(t, operatorSpec)
	commands, err := spec.CompileCommands(PlatformDefault)
	assert.NilError(t, err)
	assert.Equal(t, len(commands), 2)

	// Dependencies come before dependents.
	assert.Equal(t, commands[0].Target, "training_op_helpers")
	assert.Equal(t, commands[1].Target, "_garden_ops")

	assert.Equal(t, commands[0].Command,
		"c++ -std=c++14 -pthread kernels/box_util.cc -o libtraining_op_helpers.a")
	assert.Equal(t, commands[1].Command,
		"c++ -DEIGEN_MAX_ALIGN_BYTES=64 -shared -fPIC "+
			"kernels/pairwise_iou_kernel.cc ops/pairwise_iou_op.cc "+
			"libtraining_op_helpers.a -o _garden_ops.so")

	windows, err := spec.CompileCommands(PlatformWindows)
	assert.NilError(t, err)
	assert.Equal(t, windows[1].Command,
		"cl /DEIGEN_MAX_ALIGN_BYTES=64 "+
			"kernels/pairwise_iou_kernel.cc ops/pairwise_iou_op.cc "+
			"training_op_helpers.lib -o _garden_ops.dll")
}
