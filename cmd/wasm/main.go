//go:build js && wasm
// +build js,wasm

package main

import (
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/MeKo-Tech/proctex/internal/noise"
	"github.com/MeKo-Tech/proctex/internal/texture"
	"github.com/MeKo-Tech/proctex/internal/voronoi"
)

// GenerateRequest is the JSON accepted by proctexGenerate.
type GenerateRequest struct {
	texture.Request
	Sampler string `json:"sampler,omitempty"`
	// SiteSeed fixes the Voronoi sites when non-zero.
	SiteSeed int64 `json:"site_seed,omitempty"`
}

func errorResult(format string, args ...any) any {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}

// generate renders a texture from a JSON request and returns
// {width, height, key, pixels: Uint8Array of RGB bytes}.
func generate(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorResult("missing arguments")
	}

	var req GenerateRequest
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return errorResult("failed to parse request: %v", err)
	}
	mode, err := texture.ParseMode(string(req.Mode))
	if err != nil {
		return errorResult("%v", err)
	}
	req.Mode = mode

	// The browser has a single thread; one worker avoids goroutine overhead.
	opts := []texture.Option{
		texture.WithSampler(noise.Kind(req.Sampler)),
		texture.WithWorkers(1),
	}
	if req.SiteSeed != 0 {
		opts = append(opts, texture.WithSource(voronoi.NewSeededSource(req.SiteSeed)))
	}
	eng, err := texture.New(opts...)
	if err != nil {
		return errorResult("%v", err)
	}

	buf, err := eng.Generate(req.Request)
	if err != nil {
		return errorResult("%v", err)
	}

	pixels := js.Global().Get("Uint8Array").New(len(buf.Pix))
	js.CopyBytesToJS(pixels, buf.Pix)

	return map[string]any{
		"width":  buf.Width,
		"height": buf.Height,
		"key":    req.Request.Key(),
		"pixels": pixels,
	}
}

func initModule(this js.Value, args []js.Value) any {
	modes := make([]any, len(texture.Modes))
	for i, m := range texture.Modes {
		modes[i] = string(m)
	}
	return map[string]any{"status": "ready", "modes": modes}
}

func main() {
	c := make(chan struct{})

	js.Global().Set("proctexGenerate", js.FuncOf(generate))
	js.Global().Set("proctexInit", js.FuncOf(initModule))

	fmt.Println("proctex WASM module loaded")
	<-c
}
