package stream

import "context"

type argsKey struct{}

type bindingKey struct{}

// Args returns the run arguments set with WithArgs, or nil.
func Args(ctx context.Context) map[string]any {
	args, _ := ctx.Value(argsKey{}).(map[string]any)
	return args
}

// BindingFrom returns the Binding whose worker is running ctx.
func BindingFrom(ctx context.Context) (Binding, bool) {
	b, ok := ctx.Value(bindingKey{}).(Binding)
	return b, ok
}

func withBinding(ctx context.Context, b Binding) context.Context {
	return context.WithValue(ctx, bindingKey{}, b)
}
