/*
Package runtime implements the dialog engine: a per-session state machine that
walks a graph.Graph, captures answers into the session context and records the
exchange in a history.Tree.

Every node entered is rendered by composing its instruction with knowledge from
a ports.Retriever and handing the prompt to a ports.Generator. A turn is atomic:
the node, context and status only change once every collaborator call for the
turn has succeeded. The user's literal text is always recorded.

Once a terminal node is reached the session is finished and further turns are
free-form chat.
*/
package runtime
