// Package account implements the bank account aggregate: a deterministic
// state machine whose state is derived only by replaying its event stream.
// Command methods validate against current state and record events; they
// never mutate state directly. Appliers fold events back into state and are
// the only place state changes.
package account

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/coffers/coffers/pkg/domain"
)

// Account is the bank account aggregate.
type Account struct {
	domain.AggregateRoot

	OwnerName     string
	Opened        bool
	Balance       decimal.Decimal
	WrittenChecks []string
}

// New creates a zero-state account for an ID. The encoder serializes the
// payloads of events the account records.
func New(id string, enc domain.Encoder) *Account {
	return &Account{
		AggregateRoot: domain.NewAggregateRoot(id, AggregateType, enc),
	}
}

// Open assigns the account's identity. An account can be opened only once.
func (a *Account) Open(cmd *OpenAccount, metadata domain.EventMetadata) error {
	if a.Opened {
		return domain.NewDomainError("account already opened")
	}

	return a.Record(&AccountOpened{
		AccountID: cmd.AccountID,
		OwnerName: cmd.OwnerName,
	}, EventAccountOpened, metadata)
}

// Deposit deposits an amount. Deposits always succeed for a positive amount
// and record the balance that resulted.
func (a *Account) Deposit(cmd *DepositMoney, metadata domain.EventMetadata) error {
	if !cmd.Amount.IsPositive() {
		return domain.NewDomainError("deposit amount must be positive")
	}

	return a.Record(&CustomerDepositedMoney{
		Amount:  cmd.Amount,
		Balance: a.Balance.Add(cmd.Amount),
	}, EventCustomerDepositedMoney, metadata)
}

// Withdraw withdraws cash. It is rejected when the resulting balance would
// go negative; no event is recorded and state is unchanged.
func (a *Account) Withdraw(cmd *WithdrawMoney, metadata domain.EventMetadata) error {
	if !cmd.Amount.IsPositive() {
		return domain.NewDomainError("withdrawal amount must be positive")
	}

	balance := a.Balance.Sub(cmd.Amount)
	if balance.IsNegative() {
		return domain.NewDomainError("funds not available")
	}

	return a.Record(&CustomerWithdrewCash{
		Amount:  cmd.Amount,
		Balance: balance,
	}, EventCustomerWithdrewCash, metadata)
}

// WriteCheck writes a numbered check. Like withdrawals, it is rejected when
// funds are not available.
func (a *Account) WriteCheck(cmd *WriteCheck, metadata domain.EventMetadata) error {
	if !cmd.Amount.IsPositive() {
		return domain.NewDomainError("check amount must be positive")
	}

	balance := a.Balance.Sub(cmd.Amount)
	if balance.IsNegative() {
		return domain.NewDomainError("funds not available")
	}

	return a.Record(&CustomerWroteCheck{
		CheckNumber: cmd.CheckNumber,
		Amount:      cmd.Amount,
		Balance:     balance,
	}, EventCustomerWroteCheck, metadata)
}

// ApplyEvent folds one event payload into the account state. It is total
// over the account's event variants; an unmatched payload means the stream
// was written by something other than this state machine and is fatal.
func (a *Account) ApplyEvent(payload any) error {
	switch evt := payload.(type) {
	case *AccountOpened:
		a.Opened = true
		a.OwnerName = evt.OwnerName

	case *CustomerDepositedMoney:
		a.Balance = evt.Balance

	case *CustomerWithdrewCash:
		a.Balance = evt.Balance

	case *CustomerWroteCheck:
		a.Balance = evt.Balance
		a.WrittenChecks = append(a.WrittenChecks, evt.CheckNumber)

	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownEvent, payload)
	}

	return nil
}
