// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はイベント説明文などユーザー入力をプレーンテキストとして正規化する。
// 説明文はクライアントがテキストとして表示するため、HTMLエスケープした値は保存しない。
// マークアップを含む入力のみbluemondayのStrictPolicyでタグを除去し、文字参照を元の文字に戻す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	nethtml "golang.org/x/net/html"
)

// ContentSanitizerService はユーザー入力テキストのサニタイズ機能のインターフェース。
type ContentSanitizerService interface {
	// Sanitize は説明文をプレーンテキストに正規化する。
	// タグもコメントも含まない入力は前後の空白を除いてそのまま返す。
	// マークアップを含む場合はタグを除去し、script, style, iframe等は中身ごと取り除く。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのPolicyはスレッドセーフなため、1インスタンスを共有できる。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() ContentSanitizerService {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は説明文をプレーンテキストに正規化する。
func (s *contentSanitizer) Sanitize(raw string) string {
	raw = strings.TrimSpace(raw)
	if !containsMarkup(raw) {
		return raw
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// containsMarkup はHTMLとして解釈したときにテキスト以外のトークンが現れるかを返す。
// "5 < 7" や "Rock & Roll" のような文字はテキストとして扱われる。
func containsMarkup(s string) bool {
	if !strings.ContainsRune(s, '<') {
		return false
	}

	z := nethtml.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			return false
		case nethtml.TextToken:
		default:
			return true
		}
	}
}
