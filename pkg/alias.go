package taskmk

// AliasResolver flattens alias chains into the ordered sequence of
// concrete task names they ultimately denote. A concrete task resolves to
// itself.
type AliasResolver struct {
	registry *TaskRegistry
}

func NewAliasResolver(registry *TaskRegistry) *AliasResolver {
	return &AliasResolver{registry: registry}
}

func (r *AliasResolver) Resolve(name string) ([]string, error) {
	return r.resolve(name, []string{})
}

func (r *AliasResolver) resolve(name string, path []string) ([]string, error) {
	for _, seen := range path {
		if seen == name {
			return nil, &CyclicAliasError{Path: append(append([]string{}, path...), name)}
		}
	}

	task, err := r.registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	if !task.IsAlias() {
		return []string{name}, nil
	}

	path = append(path, name)

	resolved := []string{}
	for _, target := range task.AliasFor {
		targets, err := r.resolve(target, path)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, targets...)
	}
	return resolved, nil
}
