package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/MeKo-Tech/mosaic/internal/onnx"
	"github.com/disintegration/imaging"
	"github.com/yalue/onnxruntime_go"
)

// ModelConfig holds settings for loading an ONNX detection model.
type ModelConfig struct {
	ModelPath string `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	// ModelsDir overrides the directory searched for relative model paths.
	ModelsDir  string         `mapstructure:"models_dir"  yaml:"models_dir"  json:"models_dir"`
	NumThreads int            `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	GPU        onnx.GPUConfig `mapstructure:"gpu"         yaml:"gpu"         json:"gpu"`
}

// DefaultModelConfig returns CPU-only model defaults.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{GPU: onnx.DefaultGPUConfig()}
}

// Validate checks the model configuration.
func (c ModelConfig) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path is required")
	}
	if c.NumThreads < 0 {
		return fmt.Errorf("num threads must be >= 0, got %d", c.NumThreads)
	}
	return onnx.ValidateGPUConfig(c.GPU)
}

// Model runs a YOLO-style ONNX detection model. It implements Detector and
// is safe for concurrent Infer calls.
type Model struct {
	mu      sync.RWMutex
	config  ModelConfig
	session *onnxruntime_go.DynamicAdvancedSession

	inputInfo   onnxruntime_go.InputOutputInfo
	outputInfos []onnxruntime_go.InputOutputInfo
}

// NewModel loads an ONNX detection model and prepares an inference session.
func NewModel(config ModelConfig) (*Model, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not accessible: %w", err)
	}

	slog.Debug("initializing detection model",
		"model_path", config.ModelPath,
		"gpu_enabled", config.GPU.UseGPU,
		"num_threads", config.NumThreads)

	if err := onnx.Initialize(config.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputInfo, outputInfos, err := modelInfo(config.ModelPath)
	if err != nil {
		return nil, err
	}

	session, err := createSession(config, inputInfo, outputInfos)
	if err != nil {
		return nil, err
	}

	slog.Debug("detection model initialized",
		"input", inputInfo.Name, "outputs", len(outputInfos))

	return &Model{
		config:      config,
		session:     session,
		inputInfo:   inputInfo,
		outputInfos: outputInfos,
	}, nil
}

// modelInfo inspects the model's input and output signatures. One image
// input is required; a second output carries segmentation prototypes.
func modelInfo(modelPath string) (onnxruntime_go.InputOutputInfo, []onnxruntime_go.InputOutputInfo, error) {
	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(modelPath)
	if err != nil {
		return onnxruntime_go.InputOutputInfo{}, nil,
			fmt.Errorf("failed to get model info: %w", err)
	}
	if len(inputs) != 1 {
		return onnxruntime_go.InputOutputInfo{}, nil,
			fmt.Errorf("expected 1 model input, got %d", len(inputs))
	}
	if len(outputs) < 1 || len(outputs) > 2 {
		return onnxruntime_go.InputOutputInfo{}, nil,
			fmt.Errorf("expected 1 or 2 model outputs, got %d", len(outputs))
	}
	return inputs[0], outputs, nil
}

func createSession(config ModelConfig, inputInfo onnxruntime_go.InputOutputInfo,
	outputInfos []onnxruntime_go.InputOutputInfo,
) (*onnxruntime_go.DynamicAdvancedSession, error) {
	sessionOptions, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if destroyErr := sessionOptions.Destroy(); destroyErr != nil {
			slog.Warn("failed to destroy session options", "error", destroyErr)
		}
	}()

	if err := onnx.ConfigureSessionForGPU(sessionOptions, config.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}
	if config.NumThreads > 0 {
		if err := sessionOptions.SetIntraOpNumThreads(config.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	outputNames := make([]string, len(outputInfos))
	for i, info := range outputInfos {
		outputNames[i] = info.Name
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(config.ModelPath,
		[]string{inputInfo.Name}, outputNames, sessionOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, nil
}

// Config returns a copy of the model configuration.
func (m *Model) Config() ModelConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// HasSegmentation reports whether the model carries a mask prototype output.
func (m *Model) HasSegmentation() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.outputInfos) == 2
}

// Infer runs the model on one crop and returns detections in the crop's
// local pixel frame.
func (m *Model) Infer(ctx context.Context, img image.Image, params Params) (Detection, error) {
	if img == nil {
		return Detection{}, errors.New("input image is nil")
	}
	if err := params.Validate(); err != nil {
		return Detection{}, err
	}
	if err := ctx.Err(); err != nil {
		return Detection{}, err
	}

	bounds := img.Bounds()
	cropWidth := bounds.Dx()
	cropHeight := bounds.Dy()
	if cropWidth <= 0 || cropHeight <= 0 {
		return Detection{}, errors.New("invalid image dimensions")
	}

	resized := imaging.Resize(img, params.ImageSize, params.ImageSize, imaging.Lanczos)
	tensor, err := onnx.FromImage(resized)
	if err != nil {
		return Detection{}, fmt.Errorf("preprocessing failed: %w", err)
	}
	defer tensor.Release()

	raw, err := m.run(tensor)
	if err != nil {
		return Detection{}, err
	}
	if err := ctx.Err(); err != nil {
		return Detection{}, err
	}

	return decodeYOLO(raw, decodeParams{
		Params:     params,
		CropWidth:  cropWidth,
		CropHeight: cropHeight,
		Segment:    params.Segment && len(raw.protoData) > 0,
	})
}

// rawOutput holds model output tensors copied out of ONNX Runtime memory.
type rawOutput struct {
	predData  []float32
	predShape []int64
	// segmentation prototype output, empty for box-only models
	protoData  []float32
	protoShape []int64
}

func (m *Model) run(tensor onnx.Tensor) (rawOutput, error) {
	if err := tensor.Verify(); err != nil {
		return rawOutput{}, fmt.Errorf("invalid tensor: %w", err)
	}

	m.mu.RLock()
	session := m.session
	numOutputs := len(m.outputInfos)
	m.mu.RUnlock()
	if session == nil {
		return rawOutput{}, errors.New("model session is closed")
	}

	inputTensor, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return rawOutput{}, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() {
		if destroyErr := inputTensor.Destroy(); destroyErr != nil {
			slog.Warn("failed to destroy input tensor", "error", destroyErr)
		}
	}()

	outputs := make([]onnxruntime_go.Value, numOutputs)
	if err := session.Run([]onnxruntime_go.Value{inputTensor}, outputs); err != nil {
		return rawOutput{}, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out == nil {
				continue
			}
			if destroyErr := out.Destroy(); destroyErr != nil {
				slog.Warn("failed to destroy output tensor", "error", destroyErr)
			}
		}
	}()

	var raw rawOutput
	raw.predData, raw.predShape, err = copyFloatOutput(outputs[0])
	if err != nil {
		return rawOutput{}, err
	}
	if numOutputs == 2 {
		raw.protoData, raw.protoShape, err = copyFloatOutput(outputs[1])
		if err != nil {
			return rawOutput{}, err
		}
	}
	return raw, nil
}

// copyFloatOutput copies tensor data out before the output is destroyed.
func copyFloatOutput(value onnxruntime_go.Value) ([]float32, []int64, error) {
	floatTensor, ok := value.(*onnxruntime_go.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("expected float32 tensor, got %T", value)
	}
	src := floatTensor.GetData()
	data := make([]float32, len(src))
	copy(data, src)
	return data, value.GetShape(), nil
}

// Close releases the inference session. The ONNX environment itself stays
// initialized for the life of the process.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		if err := m.session.Destroy(); err != nil {
			slog.Warn("failed to destroy model session", "error", err)
		}
		m.session = nil
	}
	return nil
}
