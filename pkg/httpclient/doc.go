// Package httpclient はマネージドバックエンドへのJSON HTTP通信を行うクライアントを提供する。
//
// 認証APIとデータAPIの両方から使用し、APIキー等の共通ヘッダーの付与、
// リクエスト単位のベアラートークン差し替え、非2xx応答のエラー化を統一する。
package httpclient
