// Package tablegen contains the core components of tablegen, a pipeline which turns a corpus of
// tables and their surrounding text into sharded masked-language-model training data.
// This root package defines the types which flow through the pipeline (Examples, Instances) and
// the interfaces implemented by its collaborators (table stores, instance builders and context
// samplers), and is an excellent overview of tablegen's key concepts.
//
// The generation pipeline itself lives in the cluster package: a Coordinator partitions example
// indices across Workers, each of which streams serialized Instances to a single Aggregator that
// rolls them into the shard files described by the shard package.
package tablegen
