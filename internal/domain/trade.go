package domain

import "time"

// Trade is a periodic transaction report entry disclosed by a member of congress.
type Trade struct {
	Representative   string `json:"representative"`
	District         string `json:"district"`
	Ticker           string `json:"ticker"`
	AssetDescription string `json:"asset_description"`
	Type             string `json:"type"`
	Amount           string `json:"amount"`
	Owner            string `json:"owner"`
	TransactionDate  string `json:"transaction_date"`
	DisclosureDate   string `json:"disclosure_date"`
	PTRLink          string `json:"ptr_link"`
}

// TradeReport is the result of a recent-trades lookup, archived as-is.
type TradeReport struct {
	Congressman string    `json:"congressman"`
	FetchedAt   time.Time `json:"fetched_at"`
	Trades      []Trade   `json:"trades"`
}
