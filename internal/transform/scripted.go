package transform

import (
	"time"

	"github.com/dop251/goja"

	"github.com/neomind/edge/internal/mdl"
	"github.com/neomind/edge/internal/neoerr"
)

// runScripted executes js_code in a sandboxed VM with `input` bound to
// the decoded payload. The returned value is either a scalar (emitted
// under output_prefix) or an object (each top-level field emitted as
// "{output_prefix}.{field}").
func runScripted(form ScriptedForm, input any) ([]EmittedMetric, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	if err := vm.Set("input", input); err != nil {
		return nil, neoerr.Generation("bind input to script VM", err)
	}

	done := make(chan struct{})
	var value goja.Value
	var runErr error
	go func() {
		defer close(done)
		value, runErr = vm.RunString(form.JSCode)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		vm.Interrupt("transform script timed out")
		<-done
	}

	if runErr != nil {
		return nil, neoerr.Generation("execute transform script", runErr)
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}

	exported := value.Export()
	switch t := exported.(type) {
	case map[string]any:
		out := make([]EmittedMetric, 0, len(t))
		for field, v := range t {
			out = append(out, EmittedMetric{Name: form.OutputPrefix + "." + field, Value: mdl.FromNative(v)})
		}
		return out, nil
	default:
		return []EmittedMetric{{Name: form.OutputPrefix, Value: mdl.FromNative(exported)}}, nil
	}
}
