package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/meikuraledutech/pipeline"
)

func main() {
	store := pipeline.NewStore()

	store.Subscribe(func(s pipeline.Snapshot) {
		fmt.Printf("  graph: %d nodes, %d edges\n", len(s.Nodes), len(s.Edges))
	})

	// ── Empty submission ──────────────────────────────────────────────
	if _, err := pipeline.Validate(store.Snapshot()); errors.Is(err, pipeline.ErrNoNodes) {
		fmt.Println("submit on empty canvas:", err)
	}

	// ── Palette clicks and a drop ─────────────────────────────────────
	input, err := store.CreateNode(pipeline.TypeInput, pipeline.Position{X: 100, Y: 150})
	if err != nil {
		log.Fatalf("create input: %v", err)
	}
	llm, err := store.Drop([]byte(`{"nodeType":"llm"}`), pipeline.Position{X: 400, Y: 100})
	if err != nil {
		log.Fatalf("drop llm: %v", err)
	}
	output, err := store.CreateNode(pipeline.TypeOutput, pipeline.Position{X: 750, Y: 150})
	if err != nil {
		log.Fatalf("create output: %v", err)
	}

	if _, err := store.Drop([]byte(`not json`), pipeline.Position{}); err != nil {
		fmt.Println("bad drop rejected:", err)
	}

	// ── Field edits ───────────────────────────────────────────────────
	if err := store.UpdateNodeField(llm.ID, "systemPrompt", "Answer briefly."); err != nil {
		log.Fatalf("update prompt: %v", err)
	}
	if err := store.UpdateNodeField(output.ID, "format", "markdown"); err != nil {
		log.Fatalf("update format: %v", err)
	}

	// ── Wire input → llm → output ─────────────────────────────────────
	for _, c := range []pipeline.Connection{
		{Source: input.ID, Target: llm.ID},
		{Source: llm.ID, Target: output.ID},
	} {
		if _, err := store.Connect(c); err != nil {
			log.Fatalf("connect: %v", err)
		}
	}
	report(store)

	// ── Close a loop and submit again ─────────────────────────────────
	if _, err := store.Connect(pipeline.Connection{Source: output.ID, Target: input.ID}); err != nil {
		log.Fatalf("connect: %v", err)
	}
	report(store)

	dot, err := pipeline.ToDOT(store.Snapshot())
	if err != nil {
		log.Fatalf("dot: %v", err)
	}
	fmt.Println(dot)

	printJSON(store.Snapshot())

	store.Clear()
	fmt.Println("after clear, next input id:", store.NextID(pipeline.TypeInput))
}

func report(store *pipeline.Store) {
	r, err := pipeline.Validate(store.Snapshot())
	if err != nil {
		log.Fatalf("validate: %v", err)
	}
	fmt.Printf("%s: %s\n", r.Title(), r.Summary())
	if r.Cycle != nil {
		fmt.Println("cycle:", r.Cycle)
	}
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
