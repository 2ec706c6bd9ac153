// Package cartcodec packs cart lines into the bounded metadata field a
// Stripe checkout session can carry, and unpacks them again at webhook
// time. Stripe caps each metadata value at 500 characters, so encoding
// degrades through progressively smaller tiers (and a compression pass)
// until the payload fits. Decoding stays backward compatible with every
// tier ever shipped, including the original untagged JSON format.
package cartcodec

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"regexp"
)

const (
	// MetadataBudget is Stripe's per-value metadata ceiling, in characters.
	// It is an external constraint, not a tunable.
	MetadataBudget = 500

	// Version travels alongside the payload so future decoders can tell
	// which generation of the codec produced it.
	Version = "2"

	FormatFull    = "f1"
	FormatCompact = "c1"
	FormatMinimal = "m1"

	// compressedSuffix is appended to a format tag when the payload was
	// zlib-compressed and base64 encoded on top of that tier.
	compressedSuffix = "z"

	IDEncodingToken = "tok"
	IDEncodingRaw   = "raw"

	maxNameLength = 60
)

// ErrCartTooLarge means the cart cannot be represented within the
// metadata budget even at the smallest tier with compression. Checkout
// must fail loudly rather than drop lines.
var ErrCartTooLarge = errors.New("cart too large to encode within metadata budget")

var hexIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// Entry is one cart line in codec terms. PriceCents and Name are zero
// when the tier that produced the payload dropped them.
type Entry struct {
	ProductID  string
	Quantity   int
	PriceCents int64
	Name       string
}

// Encode serializes entries into the smallest representation that fits
// budget, trying full → compact → compressed compact → minimal →
// compressed minimal, in that order. It returns the payload, the format
// tag and the id-encoding tag to store next to it.
func Encode(entries []Entry, budget int) (payload, format, idEncoding string, err error) {
	idEncoding = IDEncodingRaw
	if allCanonicalIDs(entries) {
		idEncoding = IDEncodingToken
	}

	rows := make([]Entry, len(entries))
	for i, e := range entries {
		rows[i] = e
		if rows[i].Quantity < 1 {
			rows[i].Quantity = 1
		}
		if idEncoding == IDEncodingToken {
			rows[i].ProductID = tokenizeID(e.ProductID)
		}
		if len(rows[i].Name) > maxNameLength {
			rows[i].Name = rows[i].Name[:maxNameLength]
		}
	}

	full, err := marshalTier(rows, FormatFull)
	if err != nil {
		return "", "", "", err
	}
	if len(full) <= budget {
		return full, FormatFull, idEncoding, nil
	}

	compact, err := marshalTier(rows, FormatCompact)
	if err != nil {
		return "", "", "", err
	}
	if len(compact) <= budget {
		return compact, FormatCompact, idEncoding, nil
	}
	if packed := compress(compact); len(packed) <= budget {
		return packed, FormatCompact + compressedSuffix, idEncoding, nil
	}

	minimal, err := marshalTier(rows, FormatMinimal)
	if err != nil {
		return "", "", "", err
	}
	if len(minimal) <= budget {
		return minimal, FormatMinimal, idEncoding, nil
	}
	if packed := compress(minimal); len(packed) <= budget {
		return packed, FormatMinimal + compressedSuffix, idEncoding, nil
	}

	return "", "", "", ErrCartTooLarge
}

// Decode is total: whatever the payload looks like, it returns a list of
// entries, possibly empty. Historical payloads decode through an ordered
// list of candidate parsers; an unrecognized shape yields no entries
// rather than an error, so fulfillment can degrade instead of crash.
func Decode(payload, format, idEncoding string) []Entry {
	if payload == "" {
		return []Entry{}
	}

	base := format
	if len(format) > 2 && format[len(format)-1:] == compressedSuffix {
		raw, ok := decompress(payload)
		if !ok {
			return []Entry{}
		}
		payload = raw
		base = format[:len(format)-1]
	}

	for _, parse := range []func(string, string, string) ([]Entry, bool){
		parsePositional,
		parseLegacyObjects,
	} {
		if entries, ok := parse(payload, base, idEncoding); ok {
			return entries
		}
	}
	return []Entry{}
}

func allCanonicalIDs(entries []Entry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		if !hexIDPattern.MatchString(e.ProductID) {
			return false
		}
	}
	return true
}

// tokenizeID shortens a 24-hex id to 16 URL-safe characters. Reversible.
func tokenizeID(id string) string {
	raw, err := hex.DecodeString(id)
	if err != nil {
		return id
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// untokenizeID reverses tokenizeID. Ids that do not round back cleanly
// pass through untouched so a half-broken payload still yields lines.
func untokenizeID(token string) string {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != 12 {
		return token
	}
	return hex.EncodeToString(raw)
}

func marshalTier(rows []Entry, format string) (string, error) {
	out := make([][]interface{}, len(rows))
	for i, r := range rows {
		switch format {
		case FormatFull:
			row := []interface{}{r.ProductID, r.Quantity, r.PriceCents}
			if r.Name != "" {
				row = append(row, r.Name)
			}
			out[i] = row
		case FormatCompact:
			out[i] = []interface{}{r.ProductID, r.Quantity, r.PriceCents}
		case FormatMinimal:
			out[i] = []interface{}{r.ProductID, r.Quantity}
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func compress(payload string) string {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write([]byte(payload)); err != nil {
		return payload
	}
	if err := w.Close(); err != nil {
		return payload
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes())
}

func decompress(payload string) (string, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", false
	}
	r, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", false
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// parsePositional handles the tiered array-of-arrays shapes produced by
// Encode. Reports false when the payload is not that shape.
func parsePositional(payload, format, idEncoding string) ([]Entry, bool) {
	switch format {
	case FormatFull, FormatCompact, FormatMinimal:
	default:
		return nil, false
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		return []Entry{}, true // tagged as ours but malformed: degrade, not crash
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		var id string
		if err := json.Unmarshal(row[0], &id); err != nil || id == "" {
			continue
		}
		if idEncoding == IDEncodingToken {
			id = untokenizeID(id)
		}
		e := Entry{ProductID: id, Quantity: 1}
		var qty float64
		if err := json.Unmarshal(row[1], &qty); err == nil && qty >= 1 {
			e.Quantity = int(qty)
		}
		if len(row) >= 3 {
			var cents float64
			if err := json.Unmarshal(row[2], &cents); err == nil {
				e.PriceCents = int64(cents)
			}
		}
		if len(row) >= 4 {
			var name string
			if err := json.Unmarshal(row[3], &name); err == nil {
				e.Name = name
			}
		}
		entries = append(entries, e)
	}
	return entries, true
}

// legacyRecord matches the original untagged metadata format: an array
// of objects with named fields, prices in currency units.
type legacyRecord struct {
	ProductID string  `json:"productId"`
	ID        string  `json:"id"`
	Quantity  int     `json:"quantity"`
	Qty       int     `json:"qty"`
	Price     float64 `json:"price"`
	Name      string  `json:"name"`
}

func parseLegacyObjects(payload, format, idEncoding string) ([]Entry, bool) {
	var records []legacyRecord
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, false
	}

	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		id := rec.ProductID
		if id == "" {
			id = rec.ID
		}
		if id == "" {
			continue
		}
		qty := rec.Quantity
		if qty < 1 {
			qty = rec.Qty
		}
		if qty < 1 {
			qty = 1
		}
		entries = append(entries, Entry{
			ProductID:  id,
			Quantity:   qty,
			PriceCents: int64(rec.Price * 100),
			Name:       rec.Name,
		})
	}
	return entries, true
}
