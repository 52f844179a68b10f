package account

import (
	"github.com/shopspring/decimal"

	"github.com/coffers/coffers/pkg/codec"
)

// AggregateType namespaces account streams from other aggregate kinds
// sharing the same store.
const AggregateType = "account"

// Event type tags. These identify persisted payloads and must never change
// once events carrying them have been appended.
const (
	EventAccountOpened          = "account.AccountOpened"
	EventCustomerDepositedMoney = "account.CustomerDepositedMoney"
	EventCustomerWithdrewCash   = "account.CustomerWithdrewCash"
	EventCustomerWroteCheck     = "account.CustomerWroteCheck"
)

// AccountOpened records that an account was opened. The account ID is
// assigned here, exactly once.
type AccountOpened struct {
	AccountID string `json:"account_id"`
	OwnerName string `json:"owner_name"`
}

// CustomerDepositedMoney records a deposit and the balance that resulted
// from it. Events carry results, never instructions: the balance is computed
// by the aggregate at handling time and is authoritative on replay.
type CustomerDepositedMoney struct {
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
}

// CustomerWithdrewCash records a cash withdrawal and the resulting balance.
type CustomerWithdrewCash struct {
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
}

// CustomerWroteCheck records a written check and the resulting balance.
type CustomerWroteCheck struct {
	CheckNumber string          `json:"check_number"`
	Amount      decimal.Decimal `json:"amount"`
	Balance     decimal.Decimal `json:"balance"`
}

func init() {
	codec.Register(EventAccountOpened, func() any { return &AccountOpened{} })
	codec.Register(EventCustomerDepositedMoney, func() any { return &CustomerDepositedMoney{} })
	codec.Register(EventCustomerWithdrewCash, func() any { return &CustomerWithdrewCash{} })
	codec.Register(EventCustomerWroteCheck, func() any { return &CustomerWroteCheck{} })
}
