package orm

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	errMsgUnsupportedType         = "unsupported type %T"
	errMsgUnsupportedSignedType   = "unsupported signed int type %T"
	errMsgUnsupportedUnsignedType = "unsupported unsigned int type %T"
)

var (
	maxInt64ExactFloat = math.Nextafter(float64(math.MaxInt64), math.Inf(-1))
	minInt64ExactFloat = float64(math.MinInt64)

	errEmptyString = errors.New("empty string")
)

// timeLayouts are tried in order when a time is read back from text columns.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// toInt64 converts numeric values, numeric strings and byte slices to int64.
func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int, int8, int16, int32:
		return toInt64FromSignedInt(v)
	case uint, uint8, uint16, uint32, uint64:
		return toInt64FromUnsignedInt(v)
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return toInt64(string(v))
	case string:
		str := strings.TrimSpace(v)
		if str == "" {
			return 0, errEmptyString
		}
		if n, err := strconv.ParseInt(str, 10, 64); err == nil {
			return n, nil
		}
		// DECIMAL columns come back as "42.000"
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return 0, err
		}
		return floatToInt64(f)
	default:
		return 0, fmt.Errorf(errMsgUnsupportedType, value)
	}
}

func toInt64FromSignedInt(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	default:
		return 0, fmt.Errorf(errMsgUnsupportedSignedType, value)
	}
}

func toInt64FromUnsignedInt(value any) (int64, error) {
	switch v := value.(type) {
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > uint64(math.MaxInt64) {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil //#nosec G115 -- safe conversion after overflow check
	case uint64:
		if v > uint64(math.MaxInt64) {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil //#nosec G115 -- safe conversion after overflow check
	default:
		return 0, fmt.Errorf(errMsgUnsupportedUnsignedType, value)
	}
}

// toFloat64 converts numeric values, numeric strings and byte slices to float64.
func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		n, err := toInt64(v)
		return float64(n), err
	case []byte:
		return toFloat64(string(v))
	case string:
		str := strings.TrimSpace(v)
		if str == "" {
			return 0, errEmptyString
		}
		return strconv.ParseFloat(str, 64)
	default:
		return 0, fmt.Errorf(errMsgUnsupportedType, value)
	}
}

// toBool converts booleans, integers (non-zero is true) and boolean strings.
func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case []byte:
		return toBool(string(v))
	case string:
		str := strings.TrimSpace(v)
		if str == "" {
			return false, errEmptyString
		}
		return strconv.ParseBool(str)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		n, err := toInt64(v)
		if err != nil {
			return true, nil
		}
		return n != 0, nil
	default:
		return false, fmt.Errorf(errMsgUnsupportedType, value)
	}
}

// toTime converts time values, textual timestamps and unix seconds.
func toTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf(errMsgUnsupportedType, value)
		}
		return *v, nil
	case []byte:
		return toTime(string(v))
	case string:
		str := strings.TrimSpace(v)
		if str == "" {
			return time.Time{}, errEmptyString
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, str); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized time format %q", str)
	case int64, int, int32:
		n, _ := toInt64(v)
		return time.Unix(n, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf(errMsgUnsupportedType, value)
	}
}

// toString renders any scalar as text. Byte slices are taken as UTF-8.
func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func floatToInt64(value float64) (int64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("invalid float value")
	}
	if math.Trunc(value) != value {
		return 0, fmt.Errorf("value %v is not an integer", value)
	}
	if value > maxInt64ExactFloat || value < minInt64ExactFloat {
		return 0, fmt.Errorf("value %v overflows int64", value)
	}
	result := int64(value)
	if float64(result) != value {
		return 0, fmt.Errorf("value %v cannot be represented exactly as int64", value)
	}
	return result, nil
}
