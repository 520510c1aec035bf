// Package livepeer provides an HTTP client for the Livepeer AI gateway
// (text-to-speech) and Livepeer Studio (asset hosting).
package livepeer

import "net/url"

// DefaultTTSModel is the speech model used when none is configured.
const DefaultTTSModel = "parler-tts/parler-tts-large-v1"

// TTSRequest is a text-to-speech request.
type TTSRequest struct {
	Text        string
	Description string // voice style, e.g. "A calm male voice"
}

// ttsRequest is the gateway request body.
type ttsRequest struct {
	ModelID     string `json:"model_id"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
}

// ttsResponse is the gateway response body.
type ttsResponse struct {
	Audio struct {
		URL string `json:"url"`
	} `json:"audio"`
}

// UploadTarget is the result of the request-upload handshake.
type UploadTarget struct {
	URL         string // direct PUT target
	TusEndpoint string // resumable upload endpoint
	AssetID     string
	PlaybackID  string
}

type requestUploadRequest struct {
	Name           string         `json:"name"`
	StaticMP4      bool           `json:"staticMp4"`
	PlaybackPolicy playbackPolicy `json:"playbackPolicy"`
}

type playbackPolicy struct {
	Type string `json:"type"`
}

type requestUploadResponse struct {
	URL         string    `json:"url"`
	TusEndpoint string    `json:"tusEndpoint"`
	Asset       assetJSON `json:"asset"`
}

// Phase is the processing phase of a hosted asset.
type Phase string

// Asset phases reported by Livepeer Studio.
const (
	PhaseWaiting    Phase = "waiting"
	PhaseProcessing Phase = "processing"
	PhaseReady      Phase = "ready"
	PhaseFailed     Phase = "failed"
)

// Asset describes a hosted asset.
type Asset struct {
	ID         string
	PlaybackID string
	Phase      Phase
	Error      string
}

type assetJSON struct {
	ID         string `json:"id"`
	PlaybackID string `json:"playbackId"`
	Status     struct {
		Phase        string `json:"phase"`
		ErrorMessage string `json:"errorMessage,omitempty"`
	} `json:"status"`
}

func (a assetJSON) toAsset() Asset {
	return Asset{
		ID:         a.ID,
		PlaybackID: a.PlaybackID,
		Phase:      Phase(a.Status.Phase),
		Error:      a.Status.ErrorMessage,
	}
}

// PlaybackURL returns the public player URL for a playback ID.
func PlaybackURL(playbackID string) string {
	return "https://lvpr.tv/?v=" + url.QueryEscape(playbackID)
}
