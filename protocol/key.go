package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Key 键标识。浏览器侧可能发来数字键码（e.which）或符号名
// （event.key），两种形式都接受并原样透传，不做跨平台映射
type Key string

// UnmarshalJSON 同时接受 JSON 数字与字符串
func (k *Key) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*k = Key(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("key must be a number or string: %s", string(b))
	}
	*k = Key(n.String())
	return nil
}

// MarshalJSON 数字键码编码回 JSON 数字，其余编码为字符串，
// 保证两种形式端到端不变
func (k Key) MarshalJSON() ([]byte, error) {
	if n, err := strconv.Atoi(string(k)); err == nil && strconv.Itoa(n) == string(k) {
		return []byte(k), nil
	}
	return json.Marshal(string(k))
}
