package detect

import (
	"context"
	"image"
)

// DetectorFunc adapts a plain function to the Detector interface. Useful in
// tests and for wiring externally-managed models.
type DetectorFunc func(ctx context.Context, img image.Image, params Params) (Detection, error)

// Infer calls the wrapped function.
func (f DetectorFunc) Infer(ctx context.Context, img image.Image, params Params) (Detection, error) {
	return f(ctx, img, params)
}

// Close is a no-op.
func (f DetectorFunc) Close() error { return nil }

// StaticDetector returns the same Detection (or error) for every call. It
// backs dry runs and deterministic tests.
type StaticDetector struct {
	Detection Detection
	Err       error
}

// Infer returns the configured detection unchanged.
func (s *StaticDetector) Infer(_ context.Context, _ image.Image, _ Params) (Detection, error) {
	if s.Err != nil {
		return Detection{}, s.Err
	}
	return s.Detection, nil
}

// Close is a no-op.
func (s *StaticDetector) Close() error { return nil }
