package cli_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/dialogtree/internal/cli"
	"github.com/aretw0/dialogtree/internal/config"
	"github.com/aretw0/dialogtree/pkg/adapters/file"
	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/flows"
	"github.com/aretw0/dialogtree/pkg/history"
	"github.com/aretw0/dialogtree/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var echo = ports.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
	return prompt, nil
})

func TestBuild_Defaults(t *testing.T) {
	cfg := config.Default()
	app, err := cli.Build(context.Background(), cfg, nil, true, echo)
	require.NoError(t, err)

	assert.Equal(t, flows.NodeStart, app.Graph.Entry())
	turn, err := app.Engine.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, flows.NodeStart, turn.NodeID)

	families, err := app.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "dialogtree_node_visits_total")
}

func TestBuild_MissingAPIKey(t *testing.T) {
	cfg := config.Default()
	_, err := cli.Build(context.Background(), cfg, nil, false, nil)
	assert.Error(t, err)
}

func TestBuild_RetrievalNone(t *testing.T) {
	cfg := config.Default()
	cfg.Retrieval.Kind = config.RetrievalNone
	app, err := cli.Build(context.Background(), cfg, nil, false, echo)
	require.NoError(t, err)

	turn, err := app.Engine.Start(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, turn.Utterance, "Контекстная информация")
}

func TestLoadGraph_Files(t *testing.T) {
	dir := t.TempDir()
	graphPath := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(graphPath, []byte(`
entry: hello
nodes:
  - id: hello
    kind: terminal
    instruction: "Поздоровайся"
knowledge:
  - {id: k1, text: "из графа"}
`), 0o644))
	knowledgePath := filepath.Join(dir, "knowledge.yaml")
	require.NoError(t, os.WriteFile(knowledgePath, []byte(`
- text: "из файла знаний"
`), 0o644))

	cfg := config.Default()
	cfg.Graph = graphPath
	g, docs, err := cli.LoadGraph(cfg)
	require.NoError(t, err)
	assert.Equal(t, "hello", g.Entry())
	require.Len(t, docs, 1)
	assert.Equal(t, "из графа", docs[0].Text)

	cfg.Retrieval.Knowledge = knowledgePath
	_, docs, err = cli.LoadGraph(cfg)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc_0", docs[0].ID)
}

func TestOpenStore(t *testing.T) {
	for _, kind := range []string{config.StoreMemory, config.StoreFile} {
		t.Run(kind, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store.Kind = kind
			cfg.Store.Path = t.TempDir()

			store, locker, closeStore, err := cli.OpenStore(cfg)
			require.NoError(t, err)
			assert.Nil(t, locker)
			defer closeStore()

			require.NoError(t, store.Save(context.Background(), "s1", domain.NewState("s1")))
			ids, err := store.List(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"s1"}, ids)
		})
	}

	cfg := config.Default()
	cfg.Store.Kind = "sqlite"
	_, _, _, err := cli.OpenStore(cfg)
	assert.Error(t, err)
}

func TestOpenStore_Encrypted(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store.Kind = config.StoreFile
	cfg.Store.Path = dir
	cfg.Store.Encryption.Key = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{3}, 32))

	store, _, closeStore, err := cli.OpenStore(cfg)
	require.NoError(t, err)
	defer closeStore()

	ctx := context.Background()
	state := domain.NewState("s1")
	state.Context["current_temp"] = "22"
	require.NoError(t, store.Save(ctx, "s1", state))

	raw, err := os.ReadFile(filepath.Join(dir, "s1.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "current_temp")

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "22", loaded.Context["current_temp"])

	plain, err := file.New(dir).Load(ctx, "s1")
	require.NoError(t, err)
	assert.Contains(t, plain.Context, "__encrypted__")
}

func TestRunSession_ScriptAndSave(t *testing.T) {
	app, err := cli.Build(context.Background(), config.Default(), nil, false, echo)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "dialog_history.json")
	var out bytes.Buffer
	err = cli.RunSession(context.Background(), app, cli.RunOptions{
		Script:   []string{"temp", "22", "24", "день", "1.5", "yes", "exit"},
		SavePath: path,
	}, nil, &out)
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "\x1b[", "plain output for non-terminal writers")

	summary, err := cli.ValidateHistory(path)
	require.NoError(t, err)
	assert.Contains(t, summary, "13 messages in 1 root branch(es)")

	// Resume from the saved history: the new walk becomes a second root branch.
	app, err = cli.Build(context.Background(), config.Default(), nil, false, echo)
	require.NoError(t, err)
	out.Reset()
	err = cli.RunSession(context.Background(), app, cli.RunOptions{
		Script:   []string{"other"},
		LoadPath: path,
		SavePath: path,
		NoChat:   true,
	}, nil, &out)
	require.NoError(t, err)

	tree, err := file.ReadHistoryFile(path)
	require.NoError(t, err)
	assert.Len(t, tree.Roots(), 2)
}

func TestValidateHistory_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"role":"robot","content":"x","children":[]}]`), 0o644))

	_, err := cli.ValidateHistory(path)
	assert.ErrorIs(t, err, domain.ErrFormat)
}

func TestPrintHistory(t *testing.T) {
	tree := history.New()
	tree.Append(history.RoleSystem, "Какая проблема?", false)
	tree.Append(history.RoleUser, "temp", false)
	tree.Append(history.RoleSystem, "Какая температура?", false)
	tree.Append(history.RoleSystem, "Какая проблема?", true)
	tree.Append(history.RoleUser, "other", false)

	var buf bytes.Buffer
	cli.PrintHistory(&buf, tree)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"[branch 1]",
		"  system: Какая проблема?",
		"  user: temp",
		"  system: Какая температура?",
		"[branch 2]",
		"  system: Какая проблема?",
		"  user: other",
	}, lines)
}
