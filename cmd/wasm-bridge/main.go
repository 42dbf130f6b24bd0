//go:build js && wasm

// Command wasm-bridge exposes the Content Mutator and Operation Transformer
// — both pure functions (spec §4.A, §4.B) — to JavaScript, so a browser
// client can apply and rebase operations locally without a round trip to
// the server. Grounded on the teacher's cmd/ot-wasm-bridge/main.go: a
// single main that registers js.FuncOf callbacks on js.Global() and blocks
// forever. Unlike the teacher's stateful OpSeq object graph (which needed
// a registry of live pointers), Apply and Rebase take and return
// JSON-shaped values directly, so everything crosses the boundary as a
// JSON string with no wrapper objects to track.
package main

import (
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/kolabhq/tilepad/pkg/model"
	"github.com/kolabhq/tilepad/pkg/mutator"
	"github.com/kolabhq/tilepad/pkg/transform"
)

// jsApply implements Tilepad.apply(contentJSON, operationJSON) -> { content, error }.
func jsApply(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("apply: expected (content, operation)")
	}

	var content any
	if err := json.Unmarshal([]byte(args[0].String()), &content); err != nil {
		return errorResult(fmt.Sprintf("apply: invalid content: %v", err))
	}

	var op model.Operation
	if err := json.Unmarshal([]byte(args[1].String()), &op); err != nil {
		return errorResult(fmt.Sprintf("apply: invalid operation: %v", err))
	}

	newContent, err := mutator.Apply(content, &op)
	if err != nil {
		return errorResult(err.Error())
	}

	data, err := json.Marshal(newContent)
	if err != nil {
		return errorResult(fmt.Sprintf("apply: marshal result: %v", err))
	}

	return js.ValueOf(map[string]interface{}{
		"content": string(data),
		"error":   nil,
	})
}

// jsRebase implements Tilepad.rebase(operationJSON, againstJSON) -> { operation, error }.
func jsRebase(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("rebase: expected (operation, against)")
	}

	var op model.Operation
	if err := json.Unmarshal([]byte(args[0].String()), &op); err != nil {
		return errorResult(fmt.Sprintf("rebase: invalid operation: %v", err))
	}

	var against []model.Operation
	if err := json.Unmarshal([]byte(args[1].String()), &against); err != nil {
		return errorResult(fmt.Sprintf("rebase: invalid against list: %v", err))
	}

	rebased := transform.Rebase(op, against)

	data, err := json.Marshal(rebased)
	if err != nil {
		return errorResult(fmt.Sprintf("rebase: marshal result: %v", err))
	}

	return js.ValueOf(map[string]interface{}{
		"operation": string(data),
		"error":     nil,
	})
}

func errorResult(msg string) js.Value {
	return js.ValueOf(map[string]interface{}{
		"error": msg,
	})
}

func main() {
	tilepad := make(map[string]interface{})
	tilepad["apply"] = js.FuncOf(jsApply)
	tilepad["rebase"] = js.FuncOf(jsRebase)

	js.Global().Set("Tilepad", js.ValueOf(tilepad))

	<-make(chan bool)
}
