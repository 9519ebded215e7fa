package gpio

import (
	"errors"
	"testing"
)

func TestMockDriver_ReadsBackLastWrite(t *testing.T) {
	drv := &MockDriver{}
	if got, _ := drv.ReadPin(8); got != Low {
		t.Errorf("unwritten pin = %v, want LOW", got)
	}
	if err := drv.SetupPin(8, Output); err != nil {
		t.Fatalf("SetupPin: %v", err)
	}
	if err := drv.WritePin(8, High); err != nil {
		t.Fatalf("WritePin: %v", err)
	}
	if got, _ := drv.ReadPin(8); got != High {
		t.Errorf("pin 8 = %v, want HIGH", got)
	}
	if got, _ := drv.ReadPin(7); got != Low {
		t.Errorf("pin 7 = %v, want LOW", got)
	}
	if drv.writeCount() != 1 {
		t.Errorf("writes = %d, want 1", drv.writeCount())
	}
}

func TestMockDriver_RejectsUnconfiguredWrite(t *testing.T) {
	drv := &MockDriver{}
	if err := drv.WritePin(8, Low); err == nil {
		t.Error("expected error writing a pin that was never set up")
	}
	if err := drv.SetupPin(8, Input); err != nil {
		t.Fatalf("SetupPin: %v", err)
	}
	if err := drv.WritePin(8, Low); err == nil {
		t.Error("expected error writing an input pin")
	}
}

func TestMockDriver_PinRange(t *testing.T) {
	drv := &MockDriver{}
	tests := []struct {
		pin     int
		wantErr bool
	}{
		{0, false},
		{8, false},
		{MaxPin, false},
		{-1, true},
		{MaxPin + 1, true},
	}
	for _, tt := range tests {
		err := drv.SetupPin(tt.pin, Output)
		if tt.wantErr != (err != nil) {
			t.Errorf("SetupPin(%d) err = %v, wantErr %v", tt.pin, err, tt.wantErr)
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidPin) {
			t.Errorf("SetupPin(%d) err = %v, want ErrInvalidPin", tt.pin, err)
		}
	}
}

func TestNewDriver_Mock(t *testing.T) {
	drv, err := NewDriver(true)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	if _, ok := drv.(*MockDriver); !ok {
		t.Errorf("driver = %T, want *MockDriver", drv)
	}
	if err := drv.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestReleaseRPio_WithoutAcquire(t *testing.T) {
	if err := ReleaseRPio(); err != nil {
		t.Errorf("ReleaseRPio: %v", err)
	}
}

func TestStrings(t *testing.T) {
	if High.String() != "HIGH" || Low.String() != "LOW" {
		t.Errorf("got %s/%s", High, Low)
	}
	if Output.String() != "out" || Input.String() != "in" || PinMode(7).String() != "PinMode(7)" {
		t.Errorf("got %s/%s/%s", Output, Input, PinMode(7))
	}
}
