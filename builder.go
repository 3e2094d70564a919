package tablegen

// WindowIterator lazily produces context windows, each an ordered sequence of tokens
type WindowIterator interface {
	HasNextWindow() bool
	NextWindow() []string
}

// ContextSampler selects length-bounded windows of context around a table
type ContextSampler interface {
	Sample(example *Example) WindowIterator
}

// InstanceBuilder turns an Example into zero or more training Instances, drawing the context
// for each Instance from a ContextSampler
type InstanceBuilder interface {
	Build(example *Example, sampler ContextSampler) ([]*Instance, error)
	// Strip removes the fields of an Instance which are not required by the aggregator
	Strip(inst *Instance)
}

// InstanceBuilderFactory creates an InstanceBuilder for a single worker. Builders are not
// required to be safe for concurrent use, so every worker receives its own.
type InstanceBuilderFactory func(workerOrdinal int) (InstanceBuilder, error)
