// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は利用者が登録する文書（JSONオブジェクト）の
// 文字列値からHTMLを除去し、保存済みデータ経由のXSSを防ぐ。
// bluemondayのStrictPolicyを使用し、タグは一切通過させない。
package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
)

// ErrNotObject は文書がJSONオブジェクトでない場合のエラー。
var ErrNotObject = errors.New("document must be a JSON object")

// ContentSanitizerService は文書サニタイズ機能のインターフェースを定義する。
// リソースの作成・更新時、保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize は文字列からHTMLタグを除去する。
	// 空文字列の入力には空文字列を返す。
	Sanitize(raw string) string

	// SanitizeDocument はJSONオブジェクト内のすべての文字列値をサニタイズする。
	// ネストしたオブジェクト・配列も再帰的に処理し、キー・数値・真偽値・nullは変更しない。
	// トップレベルがオブジェクトでない場合はErrNotObjectを返す。
	SanitizeDocument(doc json.RawMessage) (json.RawMessage, error)
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフなため共有して使用する。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は文字列からHTMLタグを除去する。
func (s *contentSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return s.policy.Sanitize(raw)
}

// SanitizeDocument はJSONオブジェクト内のすべての文字列値をサニタイズする。
func (s *contentSanitizer) SanitizeDocument(doc json.RawMessage) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if dec.More() {
		return nil, errors.New("failed to decode document: trailing data")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}

	out, err := json.Marshal(s.walk(obj))
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return out, nil
}

func (s *contentSanitizer) walk(v any) any {
	switch val := v.(type) {
	case string:
		return s.Sanitize(val)
	case map[string]any:
		for k, child := range val {
			val[k] = s.walk(child)
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = s.walk(child)
		}
		return val
	default:
		return val
	}
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)
