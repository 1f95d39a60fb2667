/*
Package graph holds the immutable dialog graph: a validated mapping from node id
to node, plus the designated entry node.

Graphs are built in code (New, or the fluent builder in package dsl) or loaded
from YAML files (LoadYAML). Construction checks that every node populates only
the fields of its kind and that every transition targets an existing node, so
the runtime never meets a dangling link.
*/
package graph
