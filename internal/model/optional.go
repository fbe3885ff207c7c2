package model

import (
	"bytes"
	"encoding/json"
)

// Optional は部分更新のJSONで「未指定」「null」「値あり」を区別するための型。
// フィールドがJSONに存在しない場合はSetがfalseのまま残る。
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// UnmarshalJSON はjson.Unmarshalerを実装する。nullの場合もencoding/jsonから呼ばれる。
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// Cleared は値がnullまたはゼロ値として明示的に指定されたかどうかを返す。
func (o Optional[T]) Cleared(isZero func(T) bool) bool {
	return o.Set && (o.Null || isZero(o.Value))
}

// Some は値ありのOptionalを生成する。主にテストで使用する。
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null はnull指定のOptionalを生成する。
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}
