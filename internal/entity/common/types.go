package common

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// URLList 是按插入顺序保存、不含重复项的地址列表，以 JSON 数组落库。
type URLList []string

// Value 实现 driver.Valuer，空列表写为 "[]" 而不是 NULL。
func (l URLList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner。
func (l *URLList) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = URLList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for URLList: %T", value)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		*l = URLList{}
		return nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("decode url list: %w", err)
	}
	*l = URLList{}.Merge(items...)
	return nil
}

// Merge 追加地址，去掉空白项与已存在的项，返回新列表
func (l URLList) Merge(urls ...string) URLList {
	out := slices.Clone(l)
	if out == nil {
		out = URLList{}
	}
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" && !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	return out
}

// ToSlice 返回副本，nil 时返回空切片以便 JSON 输出 []
func (l URLList) ToSlice() []string {
	if len(l) == 0 {
		return []string{}
	}
	return slices.Clone([]string(l))
}
