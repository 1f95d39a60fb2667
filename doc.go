/*
Package dialogtree is a guided dialog engine for troubleshooting conversations.

A dialog is a graph of nodes. Capture nodes store the user's reply in the
session context, option nodes wait for one of a fixed set of keys, branch
nodes route silently on a captured number and terminal nodes end the guided
flow. Every utterance is produced by a Generator from the node's instruction,
optionally preceded by snippets from a Retriever. Once the flow finishes the
session continues as free chat.

The whole conversation is recorded in a branching history tree that can be
serialized to JSON and loaded back.

# Usage

	gen, err := openai.NewGenerator(openai.Config{APIKey: os.Getenv("OPENROUTER_API_KEY")})
	if err != nil {
		log.Fatal(err)
	}
	kb := memory.NewKnowledgeBase()
	_ = kb.Init(ctx, flows.ThermostatKnowledge())

	eng := dialogtree.New(gen, dialogtree.WithRetriever(kb))
	turn, err := eng.Start(ctx)
	// print turn.Utterance and turn.Options, then:
	turn, err = eng.Respond(ctx, "temp")

Collaborator failures are returned as *domain.ServiceError and leave the
session where it was; the user's message stays in the history.

For many concurrent sessions use Engine.NewSessionManager with one of the
stores in pkg/adapters (memory, file, redis). pkg/adapters/http serves a
manager over HTTP.
*/
package dialogtree
