package message

import "github.com/mitchellh/mapstructure"

// ConnectParams is the typed form of a "connect" command object, for
// callers that want strongly-typed access instead of walking the raw
// map[string]interface{} AMF decoded it into. Field names follow the
// standard RTMP connect command object properties.
type ConnectParams struct {
	App            string  `mapstructure:"app"`
	FlashVer       string  `mapstructure:"flashVer"`
	SwfUrl         string  `mapstructure:"swfUrl"`
	TcUrl          string  `mapstructure:"tcUrl"`
	Fpad           bool    `mapstructure:"fpad"`
	AudioCodecs    float64 `mapstructure:"audioCodecs"`
	VideoCodecs    float64 `mapstructure:"videoCodecs"`
	VideoFunction  float64 `mapstructure:"videoFunction"`
	ObjectEncoding float64 `mapstructure:"objectEncoding"`
}

// StreamParams is the typed form of a "publish"/"play" command's connection
// parameters, when the caller passed one (most publish/play commands pass
// nil and carry their stream key/type as positional args instead, handled
// separately by the caller via Action.Args).
type StreamParams struct {
	StreamKey      string `mapstructure:"streamKey"`
	PublishingType string `mapstructure:"publishingType"`
}

// DecodeConnectParams decodes a connect command's raw parameter map into a
// ConnectParams, using mitchellh/mapstructure the way woosungkim0123's
// go-rtmp-server decodes AMF command objects into typed structs.
func DecodeConnectParams(m map[string]interface{}) (ConnectParams, error) {
	var params ConnectParams
	if m == nil {
		return params, nil
	}
	err := mapstructure.Decode(m, &params)
	return params, err
}

// DecodePublishParams decodes a publish/play command's parameter map into a
// StreamParams.
func DecodePublishParams(m map[string]interface{}) (StreamParams, error) {
	var params StreamParams
	if m == nil {
		return params, nil
	}
	err := mapstructure.Decode(m, &params)
	return params, err
}

// ConnectParams decodes this action's raw Params into a ConnectParams.
// Opt-in, mirroring classify.go's ClassifyAudio/ClassifyVideo: decodeAction
// keeps Params as a plain map so callers that don't need the typed form
// never pay for it.
func (a *Action) ConnectParams() (ConnectParams, error) {
	return DecodeConnectParams(a.Params)
}

// PublishParams decodes this action's raw Params into a StreamParams.
// Opt-in, mirroring ConnectParams.
func (a *Action) PublishParams() (StreamParams, error) {
	return DecodePublishParams(a.Params)
}
