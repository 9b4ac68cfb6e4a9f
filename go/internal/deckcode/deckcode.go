// Package deckcode encodes a finished deck as a shareable string.
//
// A deck code is the base64url encoding of a versioned payload:
//
//	v1|card-1,card-2,...,card-n|crc32
//
// The checksum covers the version and the card list, so a truncated or
// edited code fails to decode instead of importing a wrong deck.
package deckcode

import (
	"encoding/base64"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
)

const (
	version   = "v1"
	separator = "|"
)

// Encode produces a deck code for an ordered list of card ids. Order is
// preserved so a decoded deck replays in draft order.
func Encode(cardIDs []string) (string, error) {
	if len(cardIDs) == 0 {
		return "", fmt.Errorf("cannot encode an empty deck")
	}
	for _, id := range cardIDs {
		if id == "" {
			return "", fmt.Errorf("cannot encode a deck with empty card ids")
		}
		if strings.Contains(id, ",") || strings.Contains(id, separator) {
			return "", fmt.Errorf("card id %q contains a reserved character", id)
		}
	}

	body := version + separator + strings.Join(cardIDs, ",")
	sum := crc32.ChecksumIEEE([]byte(body))
	payload := body + separator + strconv.FormatUint(uint64(sum), 16)

	return base64.RawURLEncoding.EncodeToString([]byte(payload)), nil
}

// Decode parses a deck code back into its ordered card id list. It
// rejects unknown versions and payloads whose checksum does not match.
func Decode(code string) ([]string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return nil, fmt.Errorf("failed to decode deck code: %w", err)
	}

	payload := string(raw)
	idx := strings.LastIndex(payload, separator)
	if idx < 0 {
		return nil, fmt.Errorf("malformed deck code: missing checksum")
	}
	body, sumStr := payload[:idx], payload[idx+1:]

	sum, err := strconv.ParseUint(sumStr, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("malformed deck code: bad checksum: %w", err)
	}
	if crc32.ChecksumIEEE([]byte(body)) != uint32(sum) {
		return nil, fmt.Errorf("deck code checksum mismatch")
	}

	ver, list, ok := strings.Cut(body, separator)
	if !ok {
		return nil, fmt.Errorf("malformed deck code: missing version")
	}
	if ver != version {
		return nil, fmt.Errorf("unsupported deck code version %q", ver)
	}

	cardIDs := strings.Split(list, ",")
	for _, id := range cardIDs {
		if id == "" {
			return nil, fmt.Errorf("malformed deck code: empty card id")
		}
	}
	return cardIDs, nil
}
