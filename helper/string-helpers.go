package helper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/relloyd/cdcpipe/constants"
)

// Convert a string of the form, 'f1,f2,f3...' into a slice of string values.
// 1) Split on comma.
// 2) Remove leading and trailing spaces.
// Empty tokens are dropped.
func CsvToStringSliceTrimSpaces(s string) []string {
	tokens := strings.Split(s, ",")
	retval := make([]string, 0, len(tokens))
	for x := range tokens {
		if t := strings.TrimSpace(tokens[x]); t != "" {
			retval = append(retval, t)
		}
	}
	return retval
}

// GetStringFromInterface will convert interface{} value to a string.
// Times are converted to UTC so the result can be compared.
func GetStringFromInterface(input interface{}) (retval string, err error) {
	switch v := input.(type) {
	case int:
		retval = strconv.FormatInt(int64(v), 10)
	case int8:
		retval = strconv.FormatInt(int64(v), 10)
	case int16:
		retval = strconv.FormatInt(int64(v), 10)
	case int32:
		retval = strconv.FormatInt(int64(v), 10)
	case int64:
		retval = strconv.FormatInt(v, 10)
	case string:
		retval = v
	case float32:
		retval = strconv.FormatFloat(float64(v), 'f', -1, 32) // use 'f' to convert float to string without an exponent.
	case float64:
		retval = strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		retval = v.UTC().Format(constants.TimeFormatYearSecondsTZ)
	case []uint8:
		retval = string(v)
	case bool:
		retval = strconv.FormatBool(v)
	case nil:
		retval = ""
	default:
		err = fmt.Errorf("unhandled type while fetching string from interface: type = %T; value = %v", input, input)
	}
	return
}

// GetTrueFalseStringAsBool trims spaces from s and checks if it can regexp (case insensitive) match "true".
// It returns true if there's a match else false.
func GetTrueFalseStringAsBool(s string) bool {
	re := regexp.MustCompile("(?i)^true$")
	return re.MatchString(strings.TrimSpace(s))
}

func SplitRight(s string, c string) (string, string) {
	i := strings.LastIndex(s, c)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+len(c):]
}

// Maybe s is of the form t c u.
// If so, return  t, u.
// If not, return s, "".
func Split(s string, c string) (string, string) {
	i := strings.Index(s, c)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+len(c):]
}

// IsQuoted returns true if s is wrapped in double quotes.
func IsQuoted(s string) bool {
	return len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`)
}

// QuoteIdentifier wraps s in double quotes unless it is already quoted.
// Embedded quotes are doubled.
func QuoteIdentifier(s string) string {
	if IsQuoted(s) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// EscapeSingleQuotes doubles single quotes so s can be embedded in a SQL string literal.
func EscapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, `'`, `''`)
}

// EscapeStringLiteral escapes backslashes and single quotes for a Snowflake string literal,
// where a backslash starts an escape sequence.
func EscapeStringLiteral(s string) string {
	return EscapeSingleQuotes(strings.ReplaceAll(s, `\`, `\\`))
}

// Function to get a string "src.col1 = tgt.col1, src.col2 = tgt.col2" using the colList supplier
// and where the comma can be whatever separator you pass in.
// An empty srcAlias leaves the left hand column unqualified: "col1 = tgt.col1".
func GenerateStringOfColsEqualsCols(colList []string, srcAlias string, tgtAlias string, separator string) string {
	return strings.Join(GenerateSliceOfColsEqualCols(colList, srcAlias, tgtAlias), separator)
}

func GenerateSliceOfColsEqualCols(colList []string, srcAlias string, tgtAlias string) []string {
	retval := make([]string, len(colList))
	for idx, col := range colList {
		if srcAlias == "" {
			retval[idx] = fmt.Sprintf("%s = %s.%s", col, tgtAlias, col)
		} else {
			retval[idx] = fmt.Sprintf("%s.%s = %s.%s", srcAlias, col, tgtAlias, col)
		}
	}
	return retval
}
