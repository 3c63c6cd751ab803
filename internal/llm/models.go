package llm

import "context"

// ModelInfo describes a model a provider can serve.
type ModelInfo struct {
	Name          string `json:"name"`
	ParameterSize string `json:"parameter_size"`
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// unwrapper is implemented by decorators around a Provider.
type unwrapper interface {
	Unwrap() Provider
}

// FindModelLister walks the decorator chain of p and returns the first
// provider able to list models.
func FindModelLister(p Provider) (ModelLister, bool) {
	for p != nil {
		if l, ok := p.(ModelLister); ok {
			return l, true
		}
		u, ok := p.(unwrapper)
		if !ok {
			return nil, false
		}
		p = u.Unwrap()
	}
	return nil, false
}
