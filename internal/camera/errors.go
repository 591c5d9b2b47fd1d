package camera

import "errors"

var (
	// ErrNoDeviceFound は検出されたデバイスが一つもないことを示す
	ErrNoDeviceFound = errors.New("no_device_found")

	// ErrInputAttachFailed はデバイス入力の作成または追加に失敗したことを示す
	ErrInputAttachFailed = errors.New("input_attach_failed")

	// ErrOutputAttachFailed は静止画出力の作成または追加に失敗したことを示す
	ErrOutputAttachFailed = errors.New("output_attach_failed")

	// ErrLockFailed はデバイスのロック取得またはパラメータ適用に失敗したことを示す
	// セッションの開始は中断しない
	ErrLockFailed = errors.New("lock_failed")

	// ErrNotRunning はキャプチャが実行されていないことを示す
	ErrNotRunning = errors.New("not_running")

	// ErrFrameCaptureFailed はフレームの取得に失敗したことを示す
	ErrFrameCaptureFailed = errors.New("frame_capture_failed")

	// ErrSessionClosed は破棄済みのセッションへの操作を示す
	ErrSessionClosed = errors.New("session_closed")
)
