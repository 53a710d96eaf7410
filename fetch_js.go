package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"syscall/js"

	"github.com/seqsense/splatview/cloud"
)

// fetchGet downloads path. Canceling ctx aborts the request.
func fetchGet(ctx context.Context, path string) ([]byte, error) {
	controller := js.Global().Get("AbortController").New()
	chErr := make(chan error, 1)
	var b []byte
	var errored bool

	var funcs []js.Func
	fn := func(f func(args []js.Value) interface{}) js.Func {
		jf := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
			return f(args)
		})
		funcs = append(funcs, jf)
		return jf
	}
	defer func() {
		for _, f := range funcs {
			f.Release()
		}
	}()

	js.Global().Call("fetch", path, map[string]interface{}{
		"credentials": "same-origin",
		"signal":      controller.Get("signal"),
	}).Call("then",
		fn(func(args []js.Value) interface{} {
			if !args[0].Get("ok").Bool() {
				chErr <- fmt.Errorf("failed to fetch file: %d %s",
					args[0].Get("status").Int(), args[0].Get("statusText").String())
				errored = true
				return nil
			}
			return args[0].Call("arrayBuffer")
		}),
		fn(func(args []js.Value) interface{} {
			chErr <- errors.New("failed to fetch file")
			errored = true
			return nil
		}),
	).Call("then",
		fn(func(args []js.Value) interface{} {
			if errored {
				return nil
			}
			array := js.Global().Get("Uint8Array").New(args[0])
			n := array.Get("byteLength").Int()
			b = make([]byte, n)
			js.CopyBytesToGo(b, array)
			chErr <- nil
			return nil
		}),
		fn(func(args []js.Value) interface{} {
			if !errored {
				chErr <- errors.New("failed to handle received data")
			}
			return nil
		}),
	)

	select {
	case err := <-chErr:
		if err != nil {
			return nil, err
		}
		return b, nil
	case <-ctx.Done():
		controller.Call("abort")
		// The aborted promise settles through the handlers above.
		<-chErr
		return nil, ctx.Err()
	}
}

// fetchCloud downloads and decodes the cloud at src. The format is taken
// from the file name when known and sniffed from the content otherwise.
func fetchCloud(ctx context.Context, src source) (*cloud.Cloud, error) {
	b, err := fetchGet(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	name := src.Name
	if name == "" {
		name = src.URL
	}
	if f := cloud.FormatFromName(name); f != cloud.FormatUnknown {
		return cloud.DecodeFormat(bytes.NewReader(b), f)
	}
	return cloud.Decode(bytes.NewReader(b))
}
