package common

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// StringList is a comma separated list of strings in the database.
// Used for transaction id sets; transaction ids are hex strings so the
// separator can not appear in a value.
type StringList []string

func (StringList) GormDataType() string {
	return "text"
}

func (l *StringList) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("failed to unmarshal StringList value: %v", value)
	}
	if s == "" {
		*l = StringList{}
		return nil
	}
	*l = StringList(strings.Split(s, ","))
	return nil
}

func (l StringList) Value() (driver.Value, error) {
	return strings.Join(l, ","), nil
}

func (l StringList) Contains(s string) bool {
	for _, a := range l {
		if a == s {
			return true
		}
	}
	return false
}

// Merge appends the given values, skipping any already present.
func (l StringList) Merge(values []string) StringList {
	res := l
	for _, v := range values {
		if v == "" || res.Contains(v) {
			continue
		}
		res = append(res, v)
	}
	return res
}
