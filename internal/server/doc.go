// Package server は、カメラホストをHTTP経由で操作するサーバーを管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// メソッドチャンネル呼び出しの受け付けを担当します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - メソッドチャンネル（irida.camera/probe など）への呼び出しの転送
//   - カメラセッションの構成・開始・停止・状態取得
//   - 撮影フレームとアップロード画像の品質判定（明るさ・白飛び・シャープネス）
//   - 構造化エラーのHTTPステータスへの変換
//
// 仕様:
//   - ルーティングはgin-gonic/ginを使用
//   - メソッド呼び出しは POST /api/channels/{channel} に {"method": ..., "arguments": ...} を送る
//   - 未登録のメソッドは 501 Not Implemented を返す
package server
