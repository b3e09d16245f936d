package schema

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/go-objectsid"
	"github.com/google/uuid"
)

// Converter translates one attribute value between its domain form and its
// wire form. ToLDAP may reject an operation type for attributes the
// directory manages itself.
type Converter interface {
	ToLDAP(value any, op OperationType) (string, error)
	FromLDAP(value string) (any, error)
}

// ErrOperationNotSupported is returned by converters that refuse a write.
var ErrOperationNotSupported = errors.New("operation not supported for attribute")

// StringConverter passes strings through unchanged.
type StringConverter struct{}

func (StringConverter) ToLDAP(value any, _ OperationType) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("expected string, got %T", value)
	}
}

func (StringConverter) FromLDAP(value string) (any, error) {
	return value, nil
}

// BoolConverter maps bool to the LDAP Boolean syntax (TRUE/FALSE).
type BoolConverter struct{}

func (BoolConverter) ToLDAP(value any, _ OperationType) (string, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return "", fmt.Errorf("invalid boolean %q", v)
		}
		return BoolConverter{}.ToLDAP(b, OperationRead)
	default:
		return "", fmt.Errorf("expected bool, got %T", value)
	}
}

func (BoolConverter) FromLDAP(value string) (any, error) {
	switch strings.ToUpper(value) {
	case "TRUE":
		return true, nil
	case "FALSE":
		return false, nil
	default:
		return nil, fmt.Errorf("invalid LDAP boolean %q", value)
	}
}

// IntConverter maps integers to the LDAP Integer syntax. Values are read back as int64.
type IntConverter struct{}

func (IntConverter) ToLDAP(value any, _ OperationType) (string, error) {
	switch v := value.(type) {
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case string:
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			return "", fmt.Errorf("invalid integer %q", v)
		}
		return v, nil
	default:
		return "", fmt.Errorf("expected integer, got %T", value)
	}
}

func (IntConverter) FromLDAP(value string) (any, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LDAP integer %q", value)
	}
	return n, nil
}

// GeneralizedTimeLayout is the layout written for Generalized Time values.
// Fractional seconds are accepted on read.
const GeneralizedTimeLayout = "20060102150405Z0700"

// GeneralizedTimeConverter maps time.Time to Generalized Time (UTC).
type GeneralizedTimeConverter struct{}

func (GeneralizedTimeConverter) ToLDAP(value any, _ OperationType) (string, error) {
	t, ok := value.(time.Time)
	if !ok {
		return "", fmt.Errorf("expected time.Time, got %T", value)
	}
	return t.UTC().Format(GeneralizedTimeLayout), nil
}

func (GeneralizedTimeConverter) FromLDAP(value string) (any, error) {
	t, err := time.Parse(GeneralizedTimeLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid generalized time %q: %w", value, err)
	}
	return t.UTC(), nil
}

const (
	filetimeEpochOffset = 116444736000000000 // 100ns intervals between 1601 and 1970
	filetimeNever       = math.MaxInt64
	ticksPerSecond      = 10_000_000
)

// WindowsTimeConverter maps time.Time to Windows FILETIME integers
// (accountExpires, pwdLastSet). Zero and "never" read back as the zero time,
// and the zero time is written as 0.
type WindowsTimeConverter struct{}

func (WindowsTimeConverter) ToLDAP(value any, _ OperationType) (string, error) {
	t, ok := value.(time.Time)
	if !ok {
		return "", fmt.Errorf("expected time.Time, got %T", value)
	}
	if t.IsZero() {
		return "0", nil
	}
	ticks := t.Unix()*ticksPerSecond + int64(t.Nanosecond()/100)
	return strconv.FormatInt(ticks+filetimeEpochOffset, 10), nil
}

func (WindowsTimeConverter) FromLDAP(value string) (any, error) {
	ft, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid FILETIME integer %q", value)
	}
	if ft == 0 || ft == filetimeNever {
		return time.Time{}, nil
	}
	ticks := ft - filetimeEpochOffset
	return time.Unix(ticks/ticksPerSecond, (ticks%ticksPerSecond)*100).UTC(), nil
}

// GUIDConverter maps Active Directory objectGUID values (16 bytes, mixed
// endian) to uuid.UUID. objectGUID is assigned by the directory, so it is
// rejected for MODIFY.
type GUIDConverter struct{}

// swapGUIDEndianness converts between the AD byte order and RFC 4122 order.
// The transform is its own inverse.
func swapGUIDEndianness(b []byte) []byte {
	out := make([]byte, 16)
	copy(out, b)
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	return out
}

func (GUIDConverter) ToLDAP(value any, op OperationType) (string, error) {
	if op == OperationModify {
		return "", ErrOperationNotSupported
	}

	var id uuid.UUID
	switch v := value.(type) {
	case uuid.UUID:
		id = v
	case string:
		parsed, err := uuid.Parse(v)
		if err != nil {
			return "", fmt.Errorf("invalid GUID %q: %w", v, err)
		}
		id = parsed
	default:
		return "", fmt.Errorf("expected uuid.UUID, got %T", value)
	}

	return string(swapGUIDEndianness(id[:])), nil
}

func (GUIDConverter) FromLDAP(value string) (any, error) {
	if len(value) != 16 {
		return nil, fmt.Errorf("invalid GUID: expected 16 bytes, got %d", len(value))
	}
	return uuid.FromBytes(swapGUIDEndianness([]byte(value)))
}

// SIDConverter maps binary objectSid values to their S-1-... string form.
// objectSid is assigned by the directory, so it is rejected for MODIFY.
type SIDConverter struct{}

func (SIDConverter) ToLDAP(value any, op OperationType) (string, error) {
	if op == OperationModify {
		return "", ErrOperationNotSupported
	}

	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("expected SID string, got %T", value)
	}

	parts := strings.Split(s, "-")
	if len(parts) < 3 || parts[0] != "S" {
		return "", fmt.Errorf("invalid SID %q", s)
	}

	revision, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return "", fmt.Errorf("invalid SID revision in %q", s)
	}
	authority, err := strconv.ParseUint(parts[2], 10, 48)
	if err != nil {
		return "", fmt.Errorf("invalid SID authority in %q", s)
	}

	subAuthorities := parts[3:]
	if len(subAuthorities) > 15 {
		return "", fmt.Errorf("invalid SID %q: too many sub-authorities", s)
	}

	buf := make([]byte, 8, 8+4*len(subAuthorities))
	buf[0] = byte(revision)
	buf[1] = byte(len(subAuthorities))
	for i := range 6 {
		buf[2+i] = byte(authority >> (8 * (5 - i)))
	}
	for _, part := range subAuthorities {
		sub, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return "", fmt.Errorf("invalid SID sub-authority %q in %q", part, s)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(sub))
	}

	return string(buf), nil
}

func (SIDConverter) FromLDAP(value string) (any, error) {
	b := []byte(value)
	if len(b) < 8 || len(b) != 8+4*int(b[1]) {
		return nil, fmt.Errorf("invalid binary SID of %d bytes", len(b))
	}
	return objectsid.Decode(b).String(), nil
}
