package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/history"
)

// Generation purposes reported in GenerateEvent.
const (
	PurposeNode   = "node"
	PurposeOption = "option"
	PurposeChat   = "chat"
)

var errNoGenerator = errors.New("no generator configured")

// resolve looks up id and follows branch nodes until a node that produces
// an utterance is reached. The returned path includes every visited id.
func (e *Engine) resolve(id string, vars *domain.Context) (domain.Node, []string, error) {
	var path []string
	limit := len(e.graph.Nodes())
	for {
		n, err := e.graph.Lookup(id)
		if err != nil {
			return nil, nil, err
		}
		path = append(path, id)

		b, ok := n.(*domain.BranchNode)
		if !ok {
			return n, path, nil
		}
		if len(path) > limit {
			return nil, nil, fmt.Errorf("branch loop through %q", id)
		}
		id = b.Route(vars.GetOr(b.Variable, ""))
	}
}

// render generates the utterance of node and the display text of its options.
// Nothing is recorded; the caller commits on success.
func (e *Engine) render(ctx context.Context, node domain.Node, vars *domain.Context) (string, []RenderedOption, error) {
	utterance, err := e.generate(ctx, node.NodeID(), PurposeNode, effectiveInstruction(node, vars), true)
	if err != nil {
		return "", nil, err
	}

	on, ok := node.(*domain.OptionNode)
	if !ok {
		return utterance, nil, nil
	}
	options := make([]RenderedOption, 0, len(on.Options))
	for _, o := range on.Options {
		text, err := e.generate(ctx, on.ID, PurposeOption, o.Prompt, true)
		if err != nil {
			return "", nil, err
		}
		options = append(options, RenderedOption{Key: o.Key, Prompt: o.Prompt, Text: text})
	}
	return utterance, options, nil
}

// generate asks the generator for one utterance, optionally preceded by
// retrieved knowledge. Collaborator failures are wrapped in *domain.ServiceError.
func (e *Engine) generate(ctx context.Context, nodeID, purpose, instruction string, withKnowledge bool) (string, error) {
	prompt := instruction
	if withKnowledge && e.retriever != nil {
		snippets, err := e.retriever.Retrieve(ctx, instruction, e.topK)
		if err != nil {
			return "", &domain.ServiceError{Collaborator: "retriever", Err: err}
		}
		prompt = ComposePrompt(snippets, instruction)
	}

	if e.generator == nil {
		return "", &domain.ServiceError{Collaborator: "generator", Err: errNoGenerator}
	}

	start := time.Now()
	out, err := e.generator.Generate(ctx, prompt)
	if e.hooks.OnGenerate != nil {
		e.hooks.OnGenerate(ctx, &domain.GenerateEvent{
			EventBase: e.event(domain.EventGenerate),
			NodeID:    nodeID,
			Purpose:   purpose,
			Duration:  time.Since(start),
			Err:       err,
		})
	}
	if err != nil {
		return "", &domain.ServiceError{Collaborator: "generator", Err: err}
	}
	return out, nil
}

// chat handles a free-form turn after the guided flow finished.
func (e *Engine) chat(ctx context.Context, text string) (*Turn, error) {
	e.tree.Append(history.RoleUser, text, false)

	reply, err := e.generate(ctx, "", PurposeChat, text, e.chatKnowledge)
	if err != nil {
		e.log().WarnContext(ctx, "chat turn failed", "err", err)
		return nil, err
	}
	e.tree.Append(history.RoleSystem, reply, false)
	return &Turn{NodeID: e.current, Utterance: reply, Status: e.status}, nil
}

// enter commits the move to target. Branch nodes on path are entered and
// left immediately.
func (e *Engine) enter(ctx context.Context, target domain.Node, path []string, options []RenderedOption) {
	for _, id := range path {
		e.fireNode(ctx, domain.EventNodeEnter, id)
		if id != target.NodeID() {
			e.fireNode(ctx, domain.EventNodeLeave, id)
		}
	}

	e.current = target.NodeID()
	e.options = options
	if target.Kind() == domain.KindTerminal {
		e.status = domain.StatusFinished
		e.log().DebugContext(ctx, "guided flow finished", "node_id", e.current)
	} else {
		e.status = domain.StatusAwaitingInput
	}
}

func (e *Engine) leave(ctx context.Context, id string) {
	e.options = nil
	e.fireNode(ctx, domain.EventNodeLeave, id)
}

func (e *Engine) fireNode(ctx context.Context, t domain.EventType, id string) {
	hook := e.hooks.OnNodeEnter
	if t == domain.EventNodeLeave {
		hook = e.hooks.OnNodeLeave
	}
	if hook == nil {
		return
	}
	kind := ""
	if n, err := e.graph.Lookup(id); err == nil {
		kind = n.Kind()
	}
	hook(ctx, &domain.NodeEvent{
		EventBase: e.event(t),
		NodeID:    id,
		NodeKind:  kind,
	})
}

func (e *Engine) event(t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now(),
		Type:      t,
		SessionID: e.sessionID,
	}
}
