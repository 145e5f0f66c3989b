// Package model はメンタリングプラットフォームのドメインモデルとエラー種別を定義する。
//
// エンティティの実体はマネージドバックエンドが所有しており、
// このパッケージはゲートウェイが受け渡しするJSON表現のみを持つ。
package model
