package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"syscall/js"

	"github.com/andesco/splitproxy/pkg/splitlib"
)

var splitterInstance *splitlib.Splitter

func initSplitter(env js.Value) (*splitlib.Splitter, error) {
	if splitterInstance != nil {
		return splitterInstance, nil
	}

	cfg := splitlib.DefaultConfig()
	cfg.ApplyEnv(func(key string) (string, bool) {
		if env.IsUndefined() || env.Get(key).IsUndefined() {
			return "", false
		}
		return env.Get(key).String(), true
	})

	s, err := splitlib.NewSplitter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize split library: %w", err)
	}
	splitterInstance = s
	return splitterInstance, nil
}

func splitHandler(request, env, ctx js.Value) (js.Value, error) {
	s, err := initSplitter(env)
	if err != nil {
		log.Printf("ERROR: Could not initialize splitter: %v", err)
		return createErrorResponse(500, "Could not initialize split library"), nil
	}

	contentType := ""
	if ct := request.Get("headers").Call("get", "content-type"); !ct.IsNull() {
		contentType = ct.String()
	}

	buf, err := await(request.Call("arrayBuffer"))
	if err != nil {
		log.Printf("ERROR: Could not read request body: %v", err)
		buf = js.Null()
	}

	var body []byte
	if !buf.IsNull() {
		src := js.Global().Get("Uint8Array").New(buf)
		body = make([]byte, src.Get("length").Int())
		js.CopyBytesToGo(body, src)
	}

	resp := s.Handle(context.Background(), body, contentType)

	// Create response headers for the worker
	jsRespHeaders := js.Global().Get("Object").New()
	for key, values := range resp.Header {
		jsRespHeaders.Set(key, strings.Join(values, ", "))
	}

	responseInit := js.Global().Get("Object").New()
	responseInit.Set("status", resp.Status)
	responseInit.Set("headers", jsRespHeaders)

	out := js.Global().Get("Uint8Array").New(len(resp.Body))
	js.CopyBytesToJS(out, resp.Body)

	return js.Global().Get("Response").New(out, responseInit), nil
}

// await blocks until the promise settles. Must not be called from the JS
// event loop goroutine.
func await(promise js.Value) (js.Value, error) {
	done := make(chan struct{})
	var (
		result js.Value
		err    error
	)

	onResolve := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		result = args[0]
		close(done)
		return nil
	})
	defer onResolve.Release()

	onReject := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		err = fmt.Errorf("promise rejected: %s", args[0].Call("toString").String())
		close(done)
		return nil
	})
	defer onReject.Release()

	promise.Call("then", onResolve, onReject)
	<-done
	return result, err
}

// Utility function to create error responses for Workers
func createErrorResponse(status int, message string) js.Value {
	responseInit := js.Global().Get("Object").New()
	responseInit.Set("status", status)
	responseInit.Set("statusText", message)

	headers := js.Global().Get("Object").New()
	headers.Set("Content-Type", "text/plain")
	responseInit.Set("headers", headers)

	return js.Global().Get("Response").New(message, responseInit)
}
