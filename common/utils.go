package common

import (
	"encoding/json"
	"regexp"
	"strconv"

	"github.com/google/uuid"

	cn "github.com/harborgrid-justin/cadcore/common/constant"
)

// Contains checks if an item is in a slice. This function uses type parameters to work with any slice type.
func Contains[T comparable](slice []T, item T) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}

	return false
}

// CheckMetadataKeyAndValueLength checks the length of every key and value in a metadata map
// against a shared limit. Used when attaching freeform metadata to events, entities, and
// envelope recipients.
func CheckMetadataKeyAndValueLength(limit int, metadata map[string]any) error {
	for k, v := range metadata {
		if len(k) > limit {
			return cn.ErrMetadataKeyLengthExceeded
		}

		var value string
		switch t := v.(type) {
		case int:
			value = strconv.Itoa(t)
		case float64:
			value = strconv.FormatFloat(t, 'f', -1, 64)
		case string:
			value = t
		case bool:
			value = strconv.FormatBool(t)
		}

		if len(value) > limit {
			return cn.ErrMetadataValueLengthExceeded
		}
	}

	return nil
}

// SafeIntToUint64 safely converts an int to uint64, clamping negatives to 1.
func SafeIntToUint64(val int) uint64 {
	if val < 0 {
		return uint64(1)
	}

	return uint64(val)
}

// IsUUID reports whether s looks like a textual UUID.
func IsUUID(s string) bool {
	r := regexp.MustCompile("^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[1-5][a-fA-F0-9]{3}-[89abAB][a-fA-F0-9]{3}-[a-fA-F0-9]{12}$")
	return r.MatchString(s)
}

// GenerateUUIDv7 generates a new time-ordered UUIDv7, suitable for stream and event IDs
// that benefit from roughly-sortable keys.
func GenerateUUIDv7() uuid.UUID {
	u := uuid.Must(uuid.NewV7())

	return u
}

// StructToJSONString converts a struct to its JSON string representation.
func StructToJSONString(s any) (string, error) {
	jsonByte, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	return string(jsonByte), nil
}
