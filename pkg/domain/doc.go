/*
Package domain contains the core domain models of the dialog engine.

It defines the node variants of the dialog graph, the captured-variable Context,
the persistable session State and the error taxonomy. This package is kept pure
and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Node: a step of the graph (CaptureNode, OptionNode, TerminalNode or BranchNode).
  - Context: the variables captured from user replies during a session.
  - State: the persistable snapshot of a session (current node, status, context).
  - Snippet / Document: knowledge base entries exchanged with the retrieval port.
*/
package domain
