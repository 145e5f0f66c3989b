package model

import (
	"errors"
	"fmt"
)

// Kind はエラーの分類。HTTPステータスへの変換はゲートウェイの変換表で行う。
type Kind int

const (
	// KindInternal は分類されていない内部エラー。
	KindInternal Kind = iota
	// KindValidation はリクエストの形式不正。
	KindValidation
	// KindService はマネージドバックエンドの呼び出し失敗。
	KindService
	// KindUnauthorized はセッションまたは認証情報が無効。
	KindUnauthorized
	// KindForbidden は認証済みだが対象へのアクセス権がない。
	KindForbidden
	// KindNotFound は対象レコードが存在しない。
	KindNotFound
	// KindRateLimited はレート制限を超過した。
	KindRateLimited
)

// String はログ出力用の名前を返す。
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindService:
		return "service"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error はクライアントに返してよいメッセージと内部原因を分けて保持するエラー。
// Message のみがレスポンスに載り、Err はログにだけ出力する。
type Error struct {
	// Kind はエラー分類。
	Kind Kind
	// Message はクライアント向けのメッセージ。
	Message string
	// Err は内部原因。nilの場合もある。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
}

// Unwrap は内部原因を返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError は原因を持たないエラーを生成する。
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError は内部原因を包んだエラーを生成する。
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf はエラーの分類を返す。*Error でなければ KindInternal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage はクライアントに返すメッセージを返す。
// *Error でなければ汎用メッセージになり、内部のエラー文字列は漏らさない。
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Internal server error"
}
