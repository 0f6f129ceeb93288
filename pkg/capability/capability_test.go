package capability

import "testing"

func TestOpposite(t *testing.T) {
	if PositionFront.Opposite() != PositionRear {
		t.Errorf("front.Opposite() = %s, want rear", PositionFront.Opposite())
	}
	if PositionRear.Opposite() != PositionFront {
		t.Errorf("rear.Opposite() = %s, want front", PositionRear.Opposite())
	}
	if PositionUnspecified.Opposite() != PositionUnspecified {
		t.Errorf("unspecified.Opposite() = %s, want unspecified", PositionUnspecified.Opposite())
	}
}

func TestClampZoom(t *testing.T) {
	caps := Caps{MaxZoom: 8.0}

	tests := []struct {
		in   float64
		want float64
	}{
		{0.0, 1.0},
		{0.5, 1.0},
		{1.0, 1.0},
		{4.2, 4.2},
		{8.0, 8.0},
		{8.1, 8.0},
		{1000.0, 8.0},
	}
	for _, tt := range tests {
		if got := caps.ClampZoom(tt.in); got != tt.want {
			t.Errorf("ClampZoom(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBestTorchMode(t *testing.T) {
	tests := []struct {
		name  string
		modes []TorchMode
		want  TorchMode
		ok    bool
	}{
		{"no torch", nil, TorchOff, false},
		{"on preferred", []TorchMode{TorchOff, TorchAuto, TorchOn}, TorchOn, true},
		{"auto when no on", []TorchMode{TorchOff, TorchAuto}, TorchAuto, true},
		{"off only", []TorchMode{TorchOff}, TorchOff, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := Caps{TorchModes: tt.modes}
			got, ok := caps.BestTorchMode()
			if ok != tt.ok || got != tt.want {
				t.Errorf("BestTorchMode() = %v, %v, want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestLargestPictureSize(t *testing.T) {
	caps := Caps{PictureSizes: []PictureSize{
		{1920, 1080},
		{4032, 3024},
		{1280, 720},
	}}
	got, ok := caps.LargestPictureSize()
	if !ok {
		t.Fatal("expected a picture size")
	}
	if got.Width != 4032 || got.Height != 3024 {
		t.Errorf("LargestPictureSize() = %dx%d, want 4032x3024", got.Width, got.Height)
	}

	if _, ok := (Caps{}).LargestPictureSize(); ok {
		t.Error("empty caps should have no largest picture size")
	}
}
