package cartcodec

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTripFullTier(t *testing.T) {
	entries := []Entry{
		{ProductID: "64a1f2c3d4e5f6a7b8c9d0e1", Quantity: 2, PriceCents: 50000, Name: "Fresh Milk 1L"},
		{ProductID: "64a1f2c3d4e5f6a7b8c9d0e2", Quantity: 1, PriceCents: 120000, Name: "Organic Eggs"},
	}

	payload, format, idEnc, err := Encode(entries, MetadataBudget)
	require.NoError(t, err)
	assert.Equal(t, FormatFull, format)
	assert.Equal(t, IDEncodingToken, idEnc)
	assert.LessOrEqual(t, len(payload), MetadataBudget)

	decoded := Decode(payload, format, idEnc)
	require.Len(t, decoded, 2)
	for i, e := range entries {
		assert.Equal(t, e.ProductID, decoded[i].ProductID)
		assert.Equal(t, e.Quantity, decoded[i].Quantity)
		assert.Equal(t, e.PriceCents, decoded[i].PriceCents)
		assert.Equal(t, e.Name, decoded[i].Name)
	}
}

func TestEncodeDegradesToCompactTier(t *testing.T) {
	// Long names push the full tier over budget; compact drops them.
	var entries []Entry
	for i := 0; i < 8; i++ {
		entries = append(entries, Entry{
			ProductID:  fmt.Sprintf("64a1f2c3d4e5f6a7b8c9d0%02x", i),
			Quantity:   i + 1,
			PriceCents: 12345,
			Name:       strings.Repeat("Pasture Raised Free Range ", 3),
		})
	}

	payload, format, idEnc, err := Encode(entries, MetadataBudget)
	require.NoError(t, err)
	assert.Equal(t, FormatCompact, format)
	assert.LessOrEqual(t, len(payload), MetadataBudget)

	decoded := Decode(payload, format, idEnc)
	require.Len(t, decoded, len(entries))
	for i, e := range entries {
		assert.Equal(t, e.ProductID, decoded[i].ProductID)
		assert.Equal(t, e.Quantity, decoded[i].Quantity)
		assert.Equal(t, e.PriceCents, decoded[i].PriceCents)
		assert.Empty(t, decoded[i].Name)
	}
}

func TestEncodeDegradesToMinimalPreservesIDAndQuantity(t *testing.T) {
	// Enough lines that even the compact tier (compressed or not) cannot
	// fit a small budget, but minimal still can.
	var entries []Entry
	for i := 0; i < 12; i++ {
		entries = append(entries, Entry{
			ProductID:  fmt.Sprintf("64a1f2c3d4e5f6a7b8c9d0%02x", i),
			Quantity:   2,
			PriceCents: 999999999,
		})
	}

	payload, format, idEnc, err := Encode(entries, 360)
	require.NoError(t, err)
	assert.Contains(t, []string{FormatMinimal, FormatMinimal + "z", FormatCompact + "z"}, format)
	assert.LessOrEqual(t, len(payload), 360)

	decoded := Decode(payload, format, idEnc)
	require.Len(t, decoded, len(entries))
	for i, e := range entries {
		assert.Equal(t, e.ProductID, decoded[i].ProductID)
		assert.Equal(t, e.Quantity, decoded[i].Quantity)
	}
}

func TestEncodeFailsWhenNothingFits(t *testing.T) {
	var entries []Entry
	for i := 0; i < 200; i++ {
		entries = append(entries, Entry{
			// Random-looking non-canonical ids compress poorly.
			ProductID: fmt.Sprintf("sku-%d-%s", i*7919, strings.Repeat("x", i%13)),
			Quantity:  i + 1,
		})
	}

	_, _, _, err := Encode(entries, MetadataBudget)
	require.ErrorIs(t, err, ErrCartTooLarge)
}

func TestIDTokenEncodingIsAllOrNothing(t *testing.T) {
	entries := []Entry{
		{ProductID: "64a1f2c3d4e5f6a7b8c9d0e1", Quantity: 1, PriceCents: 100},
		{ProductID: "LEGACY-SKU-42", Quantity: 3, PriceCents: 200},
	}

	payload, format, idEnc, err := Encode(entries, MetadataBudget)
	require.NoError(t, err)
	assert.Equal(t, IDEncodingRaw, idEnc)

	decoded := Decode(payload, format, idEnc)
	require.Len(t, decoded, 2)
	assert.Equal(t, "64a1f2c3d4e5f6a7b8c9d0e1", decoded[0].ProductID)
	assert.Equal(t, "LEGACY-SKU-42", decoded[1].ProductID)
}

func TestCompressedPayloadRoundTrip(t *testing.T) {
	var entries []Entry
	for i := 0; i < 20; i++ {
		entries = append(entries, Entry{
			ProductID:  fmt.Sprintf("64a1f2c3d4e5f6a7b8c9d0%02x", i),
			Quantity:   1,
			PriceCents: 45000,
		})
	}

	// Force the ladder past plain compact.
	payload, format, idEnc, err := Encode(entries, 420)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(format, "z"), "expected a compressed tier, got %q", format)

	decoded := Decode(payload, format, idEnc)
	require.Len(t, decoded, len(entries))
	for i, e := range entries {
		assert.Equal(t, e.ProductID, decoded[i].ProductID)
		assert.Equal(t, e.Quantity, decoded[i].Quantity)
	}
}

func TestDecodeUnrecognizedFormatReturnsEmpty(t *testing.T) {
	assert.Empty(t, Decode(`[["abc",1]]`, "v99", IDEncodingRaw))
	assert.Empty(t, Decode(`not json at all`, FormatFull, IDEncodingRaw))
	assert.Empty(t, Decode(`{"weird":"shape"}`, "", IDEncodingRaw))
	assert.Empty(t, Decode("", FormatCompact, IDEncodingRaw))
}

func TestDecodeLegacyObjectRecords(t *testing.T) {
	payload := `[{"productId":"64a1f2c3d4e5f6a7b8c9d0e1","quantity":2,"price":500,"name":"Fresh Milk"},` +
		`{"id":"64a1f2c3d4e5f6a7b8c9d0e2","qty":0,"price":12.5}]`

	decoded := Decode(payload, "", IDEncodingRaw)
	require.Len(t, decoded, 2)

	assert.Equal(t, "64a1f2c3d4e5f6a7b8c9d0e1", decoded[0].ProductID)
	assert.Equal(t, 2, decoded[0].Quantity)
	assert.Equal(t, int64(50000), decoded[0].PriceCents)
	assert.Equal(t, "Fresh Milk", decoded[0].Name)

	assert.Equal(t, "64a1f2c3d4e5f6a7b8c9d0e2", decoded[1].ProductID)
	assert.Equal(t, 1, decoded[1].Quantity, "non-positive quantity coerces to 1")
	assert.Equal(t, int64(1250), decoded[1].PriceCents)
}

func TestDecodeCoercesQuantityOnPositionalRows(t *testing.T) {
	decoded := Decode(`[["sku-1",0],["sku-2",-3],["sku-3"]]`, FormatMinimal, IDEncodingRaw)
	require.Len(t, decoded, 2, "single-field rows are dropped")
	assert.Equal(t, 1, decoded[0].Quantity)
	assert.Equal(t, 1, decoded[1].Quantity)
}

func TestNameTruncatedToSixtyCharacters(t *testing.T) {
	long := strings.Repeat("a", 100)
	payload, format, idEnc, err := Encode([]Entry{
		{ProductID: "64a1f2c3d4e5f6a7b8c9d0e1", Quantity: 1, PriceCents: 100, Name: long},
	}, MetadataBudget)
	require.NoError(t, err)

	decoded := Decode(payload, format, idEnc)
	require.Len(t, decoded, 1)
	assert.Len(t, decoded[0].Name, 60)
}
