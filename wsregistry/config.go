package wsregistry

import "github.com/brightloop/rtmp-ingest/config"

// Encoder is the per-endpoint wire encoder a WebSocket endpoint declares,
// mirroring a javax.websocket ServerEndpoint's declared Encoder class (the
// idiom this registry is ported from; see original_source/).
type Encoder interface {
	Encode(v interface{}) ([]byte, error)
}

// EncoderFactory constructs an Encoder. AddEndpoint invokes it once, at
// registration time, to verify the encoder is actually instantiable (spec.md
// §4.7's "constructor invocation succeeds" requirement) before accepting the
// endpoint.
type EncoderFactory func() (Encoder, error)

// EndpointConfig describes one WebSocket endpoint to register. Path may
// carry {name} URI-template segments; a path with none is stored in the
// registry's exact map.
type EndpointConfig struct {
	Path    string
	Encoder EncoderFactory
}

// Config configures a Registry's session buffer sizing and the
// add-after-handshake enforcement policy, the way studease's
// http/config.Server sizes gorilla/websocket's buffers.
type Config struct {
	BinaryBufferSize           int
	TextBufferSize             int
	EnforceNoAddAfterHandshake bool
}

// DefaultConfig returns a Config using config.DefaultBinaryBufferSize /
// config.DefaultTextBufferSize with enforcement disabled, matching the
// teacher's style of a zero-value-friendly default constructor.
func DefaultConfig() Config {
	return Config{
		BinaryBufferSize: config.DefaultBinaryBufferSize,
		TextBufferSize:   config.DefaultTextBufferSize,
	}
}
