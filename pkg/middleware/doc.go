// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// セッションCookieの解決、リクエストログ、パニックリカバリ、
// CORS設定、クライアントIP単位のレート制限を含む。
package middleware
