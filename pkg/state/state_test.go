package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/schema"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/transform"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sc, err := schema.Compile(schema.SchemaSpec{
		TopNode: "doc",
		Nodes: map[string]schema.NodeSpec{
			"doc":       {Content: "paragraph*"},
			"paragraph": {},
		},
	})
	require.NoError(t, err)
	return sc
}

func TestDispatchCommitsAndPublishesEvent(t *testing.T) {
	sc := testSchema(t)
	doc := tree.New("doc", 4)
	ed := New(sc, doc, nil, Config{})
	defer ed.Close()

	events, unsub := ed.Subscribe(EventTransactionCommitted)
	defer unsub()

	p := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "paragraph"}}
	tx := transform.NewTransaction().AddStep(transform.AddNode{Parent: doc.RootID(), Nodes: []tree.NodeEnum{p}})

	info, err := ed.Dispatch(tx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.After.Version)

	select {
	case ev := <-events:
		data := ev.Data.(TransactionCommittedData)
		assert.Equal(t, uint64(1), data.After.Version)
	case <-time.After(time.Second):
		t.Fatal("expected a TransactionCommitted event")
	}
}

func TestFilterTransactionSilentlyDropsTx(t *testing.T) {
	sc := testSchema(t)
	doc := tree.New("doc", 4)
	blocked := Plugin{
		Name: "blocker",
		Spec: PluginSpec{FilterTransaction: func(tx *transform.Transaction, s State) bool { return false }},
	}
	ed := New(sc, doc, []Plugin{blocked}, Config{})
	defer ed.Close()

	p := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "paragraph"}}
	tx := transform.NewTransaction().AddStep(transform.AddNode{Parent: doc.RootID(), Nodes: []tree.NodeEnum{p}})

	info, err := ed.Dispatch(tx)
	require.NoError(t, err)
	assert.Equal(t, info.Before.Version, info.After.Version, "a filtered transaction must not advance version")
}

func TestAppendTransactionHookRunsToFixedPoint(t *testing.T) {
	sc := testSchema(t)
	doc := tree.New("doc", 4)

	var extraID tree.NodeID
	ranOnce := false
	autoAppend := Plugin{
		Name: "auto-append",
		Spec: PluginSpec{
			AppendTransaction: func(txs []*transform.Transaction, before, after State) *transform.Transaction {
				if ranOnce {
					return nil
				}
				ranOnce = true
				extraID = tree.NewNodeID()
				extra := tree.NodeEnum{Node: tree.Node{ID: extraID, Type: "paragraph"}}
				return transform.NewTransaction().AddStep(transform.AddNode{Parent: after.Doc.RootID(), Nodes: []tree.NodeEnum{extra}})
			},
		},
	}
	ed := New(sc, doc, []Plugin{autoAppend}, Config{})
	defer ed.Close()

	p := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "paragraph"}}
	tx := transform.NewTransaction().AddStep(transform.AddNode{Parent: doc.RootID(), Nodes: []tree.NodeEnum{p}})

	info, err := ed.Dispatch(tx)
	require.NoError(t, err)

	children, err := info.After.Doc.Children(info.After.Doc.RootID())
	require.NoError(t, err)
	require.Len(t, children, 2, "original node plus the plugin's follow-up node")
	assert.Equal(t, extraID, children[1])
}

func TestQueueFullReturnsBackpressureError(t *testing.T) {
	sc := testSchema(t)
	doc := tree.New("doc", 4)
	slow := Plugin{
		Name: "slow",
		Spec: PluginSpec{Apply: func(txs []*transform.Transaction, old any, before, after State) any {
			time.Sleep(150 * time.Millisecond)
			return nil
		}},
	}
	ed := New(sc, doc, []Plugin{slow}, Config{MaxQueueSize: 1})
	defer ed.Close()

	// Occupy the single writer with a slow-committing transaction...
	go func() { _, _ = ed.Dispatch(transform.NewTransaction()) }()
	time.Sleep(30 * time.Millisecond) // let commit() acquire the writer lock and enter the slow Apply hook

	// ...fill the one queue slot...
	filled := make(chan error, 1)
	go func() {
		_, err := ed.Dispatch(transform.NewTransaction())
		filled <- err
	}()
	time.Sleep(30 * time.Millisecond)

	// ...so a third Dispatch must observe QueueFull immediately.
	_, err := ed.Dispatch(transform.NewTransaction())
	require.Error(t, err)
	txErr, ok := err.(*transform.Error)
	require.True(t, ok)
	assert.Equal(t, "QueueFull", txErr.Kind)

	require.NoError(t, <-filled)
}

func TestPluginInitRunsAtConstruction(t *testing.T) {
	sc := testSchema(t)
	doc := tree.New("doc", 4)
	counter := Plugin{
		Name: "counter",
		Spec: PluginSpec{
			Init: func(s State) any { return 0 },
			Apply: func(txs []*transform.Transaction, old any, before, after State) any {
				return old.(int) + len(txs)
			},
		},
	}
	ed := New(sc, doc, []Plugin{counter}, Config{})
	defer ed.Close()

	assert.Equal(t, 0, ed.State().PluginFields["counter"])

	p := tree.NodeEnum{Node: tree.Node{ID: tree.NewNodeID(), Type: "paragraph"}}
	tx := transform.NewTransaction().AddStep(transform.AddNode{Parent: doc.RootID(), Nodes: []tree.NodeEnum{p}})
	info, err := ed.Dispatch(tx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.After.PluginFields["counter"])
}
