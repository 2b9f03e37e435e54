package mono

// Account is one card or jar from /personal/client-info.
// Balances are signed minor units.
type Account struct {
	ID           string   `json:"id"`
	Balance      int64    `json:"balance"`
	CreditLimit  int64    `json:"creditLimit"`
	CurrencyCode int      `json:"currencyCode"`
	CashbackType string   `json:"cashbackType,omitempty"`
	Type         string   `json:"type,omitempty"`
	IBAN         string   `json:"iban,omitempty"`
	MaskedPan    []string `json:"maskedPan,omitempty"`
}

// ClientInfo is the /personal/client-info response.
type ClientInfo struct {
	Name     string    `json:"name"`
	Accounts []Account `json:"accounts"`
}

// StatementItem is one row of /personal/statement.
// Amount is signed minor units, negative = money out. MCC 0 means absent.
// Fields the upstream adds beyond these are ignored.
type StatementItem struct {
	ID           string `json:"id"`
	Time         int64  `json:"time"`
	Amount       int64  `json:"amount"`
	Description  string `json:"description,omitempty"`
	MCC          int    `json:"mcc,omitempty"`
	CurrencyCode int    `json:"currencyCode,omitempty"`
}
