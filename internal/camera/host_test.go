package camera

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

func newTestHost(t *testing.T, platform *SimulatedPlatform) (*Host, *SimulatedSurface) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	surface := NewSimulatedSurface(390, 844)
	host := NewHost(platform, HostOptions{
		Session: DefaultSessionOptions(),
		Surface: surface,
	}, logger)
	t.Cleanup(host.Close)
	return host, surface
}

func TestHost_StartStopPreview(t *testing.T) {
	platform := NewSimulatedPlatform(newTestDevice("wide", KindWideAngle, 4.0))
	host, surface := newTestHost(t, platform)

	host.StartPreview()
	host.Wait()

	if host.Session().State() != StateRunning {
		t.Fatalf("Expected running, got %s", host.Session().State())
	}
	if len(surface.Layers()) != 1 {
		t.Errorf("Expected preview layer on surface, got %d", len(surface.Layers()))
	}

	host.StopPreview()
	host.Wait()
	if host.Session().State() != StateStopped {
		t.Errorf("Expected stopped, got %s", host.Session().State())
	}
}

func TestHost_Probe(t *testing.T) {
	ctx := context.Background()
	platform := NewSimulatedPlatform(
		newTestDevice("dual", KindDualWide, 4.0),
		newTestDevice("tele", KindTelephoto, 3.0),
		NewSimulatedDevice(DeviceInfo{ID: "front", Kind: KindWideAngle, Position: PositionFront}),
	)
	host, _ := newTestHost(t, platform)

	report, err := host.Probe(ctx)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	if report.ID == "" {
		t.Error("Expected report ID to be set")
	}
	if len(report.Devices) != 2 {
		t.Fatalf("Expected 2 back devices, got %d", len(report.Devices))
	}
	if report.Selected == nil || report.Selected.ID != "tele" {
		t.Errorf("Expected telephoto to be selected, got %+v", report.Selected)
	}
	if report.Policy.ZoomThreshold != DefaultZoomThreshold {
		t.Errorf("Expected zoom threshold %v, got %v", DefaultZoomThreshold, report.Policy.ZoomThreshold)
	}
	if report.Session.State != StateUnconfigured {
		t.Errorf("Expected unconfigured session, got %s", report.Session.State)
	}

	// プローブは入力の追加もロック設定も行わない
	if platform.InputAttempts() != 0 {
		t.Errorf("Expected no input attempts, got %d", platform.InputAttempts())
	}
	for _, dev := range platform.Devices() {
		if locks, _ := dev.LockCounts(); locks != 0 {
			t.Errorf("Expected no locks on %s, got %d", dev.Info().ID, locks)
		}
	}
}

func TestHost_ProbeWithoutDevices(t *testing.T) {
	host, _ := newTestHost(t, NewSimulatedPlatform())

	report, err := host.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if report.Selected != nil {
		t.Errorf("Expected no selection, got %+v", report.Selected)
	}
	if report.SelectionError != ErrNoDeviceFound.Error() {
		t.Errorf("Expected selection error %q, got %q", ErrNoDeviceFound.Error(), report.SelectionError)
	}
}

func TestHost_ProbeScanError(t *testing.T) {
	platform := NewSimulatedPlatform()
	platform.SetScanError(errors.New("camera service unavailable"))
	host, _ := newTestHost(t, platform)

	if _, err := host.Probe(context.Background()); err == nil {
		t.Error("Expected probe to fail when discovery fails")
	}
}

func TestHost_CloseIsIdempotent(t *testing.T) {
	platform := NewSimulatedPlatform(newTestDevice("wide", KindWideAngle, 4.0))
	logger, _ := test.NewNullLogger()
	host := NewHost(platform, HostOptions{Session: DefaultSessionOptions()}, logger)

	host.StartPreview()
	host.Close()
	host.Close()

	if host.Session().State() != StateStopped {
		t.Errorf("Expected stopped after close, got %s", host.Session().State())
	}
}
