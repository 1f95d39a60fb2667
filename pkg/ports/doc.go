/*
Package ports defines the driven ports (interfaces) of the dialog engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various collaborators and storage backends.

# Key Interfaces

  - Retriever / KnowledgeBase: knowledge lookup consulted before every generation.
  - Generator: the hosted language model producing the assistant's utterances.
  - StateStore / HistoryStore: persistence of session state and history trees.
  - DistributedLocker: distributed locking for concurrent session access.
*/
package ports
