// Package client talks to a running ComfyUI-compatible server: submitting
// compiled prompts, fetching node schemas and execution history over HTTP,
// and following execution progress over the server's websocket. Everything
// here is explicit and opt-in; the conversion core never touches the network.
package client
