package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetwork(t *testing.T) {
	assert.Equal(t, int64(84532), NetworkBaseSepolia.ChainID().Int64())
	assert.Equal(t, int64(8453), NetworkBase.ChainID().Int64())
	assert.Nil(t, Network("polygon").ChainID())
	assert.True(t, NetworkBaseSepolia.IsTestnet())
	assert.False(t, NetworkBase.IsTestnet())

	n, err := ParseNetwork("base")
	require.NoError(t, err)
	assert.Equal(t, NetworkBase, n)

	_, err = ParseNetwork("solana-devnet")
	assert.True(t, IsKind(err, KindValidation))

	n, ok := NetworkByChainID(84532)
	assert.True(t, ok)
	assert.Equal(t, NetworkBaseSepolia, n)
	_, ok = NetworkByChainID(1)
	assert.False(t, ok)
}

func TestStorefrontError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("upsert: %w", NewError(KindStorage, "write intent", cause))

	assert.Equal(t, KindStorage, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindStorage))

	assert.Equal(t, http.StatusBadRequest, StatusOf(KindValidation))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(KindStorage))
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(KindUnavailable))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(ErrorKind("bogus")))

	// safe messages never carry the cause
	assert.NotContains(t, SafeMessage(KindStorage), "connection refused")
	assert.Equal(t, SafeMessage(KindInternal), SafeMessage(ErrorKind("bogus")))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 21)
	assert.Equal(t, 3, p.TotalPages)

	assert.Equal(t, 0, NewPagination(1, 10, 0).TotalPages)
	assert.Equal(t, 1, NewPagination(1, 50, 50).TotalPages)
	assert.Equal(t, 2, NewPagination(1, 50, 51).TotalPages)
}

func TestShippingDetails_FormattedAddress(t *testing.T) {
	s := ShippingDetails{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Address:   "12 Main St",
		City:      "Springfield",
		State:     "IL",
		ZipCode:   "62701",
		Country:   "United States",
	}
	assert.Equal(t, "Ada Lovelace12 MAIN STSPRINGFIELD, IL 62701United States", s.FormattedAddress())

	s.Formatted = "  Ada   Lovelace 12 MAIN ST  "
	assert.Equal(t, "Ada Lovelace 12 MAIN ST", s.FormattedAddress())
}

func TestPublicData_UnmarshalStringEncoded(t *testing.T) {
	var p Proof
	raw := `{"identifier":"0x01","claimData":{},"signatures":["0x"],
		"publicData":"{\"itemLink\":\"https://amazon.com/dp/B000000001\",\"finalPrice\":\"$10\"}"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	assert.Equal(t, "https://amazon.com/dp/B000000001", p.PublicData.ItemLink)
	assert.Equal(t, "$10", p.PublicData.FinalPrice)

	raw = `{"publicData":{"deliveryDate":"Jan 2"}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	assert.Equal(t, "Jan 2", p.PublicData.DeliveryDate)
}
