// Package local はマネージドバックエンドをSQLiteで模したbackend.Backend実装を提供する。
//
// ローカル開発とテストのためのもので、外部サービスなしで登録からメッセージ送信までを動かせる。
// パスワードはbcryptでハッシュ化し、アクセストークンはHS256のJWTとして発行する。
// マネージドバックエンドと同様に、プロフィールと接続・メッセージの参照整合性は検証しない。
package local
