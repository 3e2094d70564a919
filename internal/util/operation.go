package util

import (
	"fmt"

	"github.com/go-sif/tablegen"
	"github.com/pkg/errors"
)

// SafeBuild invokes an InstanceBuilder such that panics are recovered and nice error messages are
// constructed. Returned errors carry a stack trace, printable with %+v.
func SafeBuild(builder tablegen.InstanceBuilder, example *tablegen.Example, sampler tablegen.ContextSampler) (instances []*tablegen.Instance, err error) {
	defer func() {
		if r := recover(); r != nil {
			instances = nil
			if anErr, ok := r.(error); ok {
				err = fmt.Errorf("Build Panic: %w\n%s", anErr, GetTrace())
			} else {
				err = fmt.Errorf("Build Panic: %v\n%s", r, GetTrace())
			}
		} else if err != nil {
			instances = nil
			err = errors.WithStack(err)
		}
	}()
	instances, err = builder.Build(example, sampler)
	return
}
