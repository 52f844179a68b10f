package account_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/coffers/coffers/account"
	"github.com/coffers/coffers/pkg/codec"
)

// Every event variant must survive the trip through the codec unchanged:
// replay and projections both depend on it. Decimal fixtures are built from
// strings, which is the representation they decode back to.
func TestEventRoundTrip(t *testing.T) {
	c := codec.NewDefaultJSON()

	variants := []struct {
		tag     string
		payload any
	}{
		{account.EventAccountOpened, &account.AccountOpened{
			AccountID: "acc-1", OwnerName: "Ada Lovelace",
		}},
		{account.EventCustomerDepositedMoney, &account.CustomerDepositedMoney{
			Amount: decimal.RequireFromString("200"), Balance: decimal.RequireFromString("200"),
		}},
		{account.EventCustomerWithdrewCash, &account.CustomerWithdrewCash{
			Amount: decimal.RequireFromString("100.5"), Balance: decimal.RequireFromString("99.5"),
		}},
		{account.EventCustomerWroteCheck, &account.CustomerWroteCheck{
			CheckNumber: "1170", Amount: decimal.RequireFromString("100"), Balance: decimal.RequireFromString("100"),
		}},
	}

	for _, v := range variants {
		t.Run(v.tag, func(t *testing.T) {
			data, err := c.Encode(v.payload)
			require.NoError(t, err)

			decoded, err := c.Decode(v.tag, data)
			require.NoError(t, err)
			require.Equal(t, v.payload, decoded)
		})
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	c := codec.NewDefaultJSON()

	_, err := c.Decode(account.EventCustomerDepositedMoney, []byte(`{"amount": not-json`))

	require.Error(t, err)
	require.True(t, codec.IsDecodeError(err))
}

func TestDecodeUnknownTag(t *testing.T) {
	c := codec.NewDefaultJSON()

	_, err := c.Decode("account.NoSuchEvent", []byte(`{}`))

	require.Error(t, err)
	require.True(t, codec.IsDecodeError(err))
}
