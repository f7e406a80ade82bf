package main

import (
	"fmt"
	"syscall/js"
)

func main() {
	fmt.Println("Go main() function starting...")

	// Export the fetch function to JavaScript
	js.Global().Set("goFetch", js.FuncOf(fetchHandler))

	fmt.Println("Go WASM module loaded and ready")

	// Keep the program running
	select {}
}

func fetchHandler(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return js.Global().Get("Promise").Call("reject", js.ValueOf("Expected 3 arguments: request, env, ctx"))
	}

	request := args[0]
	env := args[1]
	ctx := args[2]

	// Return a Promise that resolves with the response
	return js.Global().Get("Promise").New(js.FuncOf(func(this js.Value, promiseArgs []js.Value) interface{} {
		resolve := promiseArgs[0]
		reject := promiseArgs[1]

		// handleRequest awaits JS promises, which must not happen on the
		// event loop goroutine.
		go func() {
			defer func() {
				if r := recover(); r != nil {
					reject.Invoke(js.ValueOf(fmt.Sprintf("Panic: %v", r)))
				}
			}()

			response, err := handleRequest(request, env, ctx)
			if err != nil {
				reject.Invoke(js.ValueOf(err.Error()))
				return
			}
			resolve.Invoke(response)
		}()

		return nil
	}))
}

func handleRequest(request, env, ctx js.Value) (js.Value, error) {
	url := request.Get("url").String()
	urlObj := js.Global().Get("URL").New(url)
	path := urlObj.Get("pathname").String()
	method := request.Get("method").String()

	if path == "/api/split" {
		if method != "POST" {
			return createErrorResponse(405, "Method Not Allowed"), nil
		}
		return splitHandler(request, env, ctx)
	}

	// For all other paths, serve static assets when the binding exists.
	assets := env.Get("ASSETS")
	if assets.IsUndefined() {
		return createErrorResponse(404, "Not Found"), nil
	}
	return await(assets.Call("fetch", request))
}
