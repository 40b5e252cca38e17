package models

import "time"

// Item is a single ingested feed entry. Items are immutable after creation;
// dedupe_hash (sha256 of title+url) is the idempotency key that suppresses
// re-ingestion of entries already seen.
type Item struct {
	ID          string     `json:"id" badgerhold:"key"`
	SourceID    string     `json:"source_id" badgerholdIndex:"SourceID"`
	URL         string     `json:"url" badgerholdIndex:"URL"`
	Title       string     `json:"title"`
	Author      string     `json:"author,omitempty"`
	Lang        string     `json:"lang,omitempty"`
	FetchedAt   time.Time  `json:"fetched_at" badgerholdIndex:"FetchedAt"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	DedupeHash  string     `json:"dedupe_hash" badgerholdIndex:"DedupeHash"`
	Raw         string     `json:"raw,omitempty"`
}

// Gematria holds one computed value for one (item, scheme) pair. Exactly the
// currently enabled scheme set is present for a recomputed item; rows for
// schemes that fell out of the enabled set are pruned on recomputation.
type Gematria struct {
	// Key is ItemID + "/" + Scheme, enforcing the composite uniqueness.
	Key             string `json:"key" badgerhold:"key"`
	ItemID          string `json:"item_id" badgerholdIndex:"ItemID"`
	Scheme          string `json:"scheme" badgerholdIndex:"Scheme"`
	Value           int    `json:"value" badgerholdIndex:"Value"`
	TokenCount      int    `json:"token_count"`
	NormalizedTitle string `json:"normalized_title"`
}

// GematriaKey builds the composite storage key for a gematria row.
func GematriaKey(itemID, scheme string) string {
	return itemID + "/" + scheme
}
