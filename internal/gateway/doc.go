// Package gateway はメンタリングプラットフォームのHTTPゲートウェイを提供する。
//
// 登録・ログイン・ログアウト、プロフィール参照、メンター一覧、
// 接続リクエスト、メッセージ送受信のエンドポイントを公開し、
// 認証とデータの操作はすべてマネージドバックエンドに委譲する。
// ログイン状態は署名済みセッションCookieとサーバー側のセッションストアで管理する。
package gateway
