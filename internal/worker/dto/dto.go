package dto

// StreamDataSignalGeneration is the payload of one queued unit of work, a
// single (asset, date) pair.
type StreamDataSignalGeneration struct {
	AssetID uint   `json:"asset_id"`
	Symbol  string `json:"symbol"`
	Date    string `json:"date"`
}
