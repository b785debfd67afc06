// Package agents contains the agents shipped with the await service.
package agents

import "github.com/xiaot623/gogo/await/internal/runtime"

// RegisterBuiltins registers every built-in agent.
func RegisterBuiltins(r *runtime.Registry) error {
	for _, a := range []runtime.Agent{
		NewPasswordGenerator(),
		NewEcho(),
	} {
		if err := r.Register(a); err != nil {
			return err
		}
	}
	return nil
}
