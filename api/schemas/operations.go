package schemas

// -- Site Operation Arguments & Results --
//
// Every type in this file crosses the page-context boundary as JSON, so fields
// are plain values only: no pointers to shared state, no functions, no cycles.

// SearchOptions narrows a search to one of the site's result filters. The empty
// type means "whatever the site shows by default".
type SearchOptions struct {
	Type string `json:"type,omitempty"`
}

// SearchResult is one organic result scraped from a results page.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// SwapParams describes a token swap on the exchange front end. Amount is kept
// as the literal the user typed so no precision is lost crossing the boundary.
type SwapParams struct {
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	Amount    string `json:"amount"`
}

// SwapStatus is the terminal state a swap reached on the page.
type SwapStatus string

const (
	SwapSubmitted SwapStatus = "submitted"
)

// SwapResult reports a swap the page accepted.
type SwapResult struct {
	Status    SwapStatus `json:"status"`
	TxHash    string     `json:"txHash,omitempty"`
	FromToken string     `json:"fromToken"`
	ToToken   string     `json:"toToken"`
	AmountIn  string     `json:"amountIn"`
}
