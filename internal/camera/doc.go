// Package camera 虹彩・近接撮影用のカメラ選択とマクロ設定を担う
//
// # 責務
// - 背面カメラユニットの検出と最適な1台の選択
// - キャプチャセッションの構成（入力1つ・静止画出力1つを1トランザクションで確定）
// - マクロ設定（フォーカス固定・露出固定・スムーズAF無効化・ズーム上限）の適用
// - プレビューの開始・停止
// - プローブ用の状態レポート作成
// - 撮影フレームの品質判定（明るさ・白飛び・シャープネス）
//
// # 仕様
//   - Device Selector: 望遠カメラを優先し、なければ列挙順の先頭を選ぶ純粋関数
//   - Capture Session: 構成・開始・停止をセッション専用キューで直列実行する
//   - Macro Lock Policy: 排他設定ロックの取得・解放をスコープで保証する。
//     失敗はlock_failedとしてログと回数に残し、セッションは既定のパラメータで続行する
//   - Host: セッションとUIキューを所有するコンテキスト。グローバル状態は持たない
//   - Platform: プラットフォームのカメラ機能の抽象。SimulatedPlatformはメモリ上の実装
//
// # 状態遷移
//
//	unconfigured → configuring → configured → running → stopped
//
// 構成に失敗した場合は元の状態に戻り、何も確定されない。
package camera
