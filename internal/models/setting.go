package models

import "encoding/json"

// Setting keys consumed by the worker and gematria services.
const (
	SettingWorkerScrape    = "worker.scrape"
	SettingGematriaCompute = "gematria.compute"
)

// Setting is a generic key to JSON document store. Readers merge the stored
// document with hard-coded defaults when a key or field is absent.
type Setting struct {
	Key   string          `json:"key" badgerhold:"key"`
	Value json.RawMessage `json:"value"`
}
