// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer は議案のタイトルと本文を保存前にサニタイズし、
// 画面に表示されるテキストからスクリプトやイベント属性を除去する。
// bluemondayの許可リストベースのポリシーを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer は議案テキストのサニタイズ機能のインターフェース。
type ContentSanitizer interface {
	// SanitizeTitle はすべてのHTMLタグを除去したプレーンテキストを返す。
	// 前後の空白は除去する。
	SanitizeTitle(raw string) string

	// SanitizeBody は本文の書式タグ（p, br, ul, ol, li, blockquote, strong, em）のみを残す。
	// リンク、画像、script、iframe、styleおよびon*イベント属性は除去する。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeBody(raw string) string
}

// contentSanitizer はContentSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなため、複数のリクエストで共有できる。
type contentSanitizer struct {
	title *bluemonday.Policy
	body  *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
func NewContentSanitizer() ContentSanitizer {
	body := bluemonday.NewPolicy()
	body.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "strong", "em",
	)

	return &contentSanitizer{
		title: bluemonday.StrictPolicy(),
		body:  body,
	}
}

// SanitizeTitle はタイトルからタグを除去する。
// StrictPolicyはエスケープ済みの文字列を返すため、保存用にアンエスケープする。
func (s *contentSanitizer) SanitizeTitle(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.title.Sanitize(raw)))
}

// SanitizeBody は本文の許可タグ以外を除去する。
func (s *contentSanitizer) SanitizeBody(raw string) string {
	return strings.TrimSpace(s.body.Sanitize(raw))
}
