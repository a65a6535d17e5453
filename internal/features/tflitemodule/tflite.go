// Package tflitemodule runs a TensorFlow Lite model as a feature module.
//
// The model's first input is resized to [channels, frames] for every window
// shape it sees. If the model has a second input it receives the sample rate.
// The first output is returned flattened.
package tflitemodule

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/tphakala/go-tflite"
	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/features"
	"github.com/tphakala/mfcc-go/internal/logger"
)

const modelType = "tflite"

// Config configures a TFLite feature module.
type Config struct {
	ModelPath string
	Threads   int // 0 = number of CPUs
}

// Module wraps a TFLite interpreter. Invocations are serialised.
type Module struct {
	mu          sync.Mutex
	path        string
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	channels    int
	frames      int
	closed      bool
}

func init() {
	features.Register(modelType, func(opts features.ModelOptions) (features.Loader, error) {
		if opts.Path == "" {
			return nil, errors.Newf("tflite model type requires a model path").
				Component("features").
				Category(errors.CategoryConfiguration).
				Build()
		}
		return NewLoader(Config{ModelPath: opts.Path, Threads: opts.Threads}), nil
	})
}

// NewLoader returns a features.Loader that loads the model at cfg.ModelPath.
func NewLoader(cfg Config) features.Loader {
	return features.LoaderFunc(func() (features.Module, error) {
		return Load(cfg)
	})
}

// Load reads the model file and prepares an interpreter.
func Load(cfg Config) (*Module, error) {
	start := time.Now()
	log := GetLogger()

	modelData, err := os.ReadFile(cfg.ModelPath)
	if err != nil {
		return nil, errors.New(fmt.Errorf("error reading model file: %w", err)).
			Component("features").
			Category(errors.CategoryModelLoad).
			ModelContext(cfg.ModelPath, modelType).
			Timing("model-load", time.Since(start)).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.New(fmt.Errorf("cannot load TensorFlow Lite model")).
			Component("features").
			Category(errors.CategoryModelInit).
			ModelContext(cfg.ModelPath, modelType).
			Context("model_size_kb", len(modelData)/1024).
			Timing("model-init", time.Since(start)).
			Build()
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, errors.New(fmt.Errorf("cannot create interpreter")).
			Component("features").
			Category(errors.CategoryModelInit).
			ModelContext(cfg.ModelPath, modelType).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, errors.New(fmt.Errorf("tensor allocation failed: %v", status)).
			Component("features").
			Category(errors.CategoryModelInit).
			ModelContext(cfg.ModelPath, modelType).
			Build()
	}

	log.Info("TFLite feature module loaded",
		logger.String("path", cfg.ModelPath),
		logger.Int("threads", threads),
		logger.Int("inputs", interpreter.GetInputTensorCount()),
		logger.Duration("elapsed", time.Since(start)))

	return &Module{
		path:        cfg.ModelPath,
		model:       model,
		options:     options,
		interpreter: interpreter,
	}, nil
}

// Infer implements features.Module. The interpreter cannot be interrupted
// once invoked, so ctx is only checked before invocation.
func (m *Module) Infer(ctx context.Context, samples []float32, frameCount, channelCount, sampleRate int) ([]float32, error) {
	if err := features.ValidateInput(samples, frameCount, channelCount, sampleRate); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, m.inferError(fmt.Errorf("module is closed"))
	}

	if err := m.resize(channelCount, frameCount); err != nil {
		return nil, err
	}

	input := m.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, m.inferError(fmt.Errorf("cannot get input tensor"))
	}
	data := input.Float32s()
	if len(data) < len(samples) {
		return nil, errors.Newf("input tensor does not have enough capacity: need %d, have %d", len(samples), len(data)).
			Component("features").
			Category(errors.CategoryValidation).
			Context("required_size", len(samples)).
			Context("actual_size", len(data)).
			Build()
	}
	copy(data, samples)

	if m.interpreter.GetInputTensorCount() > 1 {
		if err := m.setSampleRate(sampleRate); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.New(err).
			Component("features").
			Category(errors.CategoryCancellation).
			Build()
	}

	start := time.Now()
	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.Newf("tensor invoke failed: %v", status).
			Component("features").
			Category(errors.CategoryAudioAnalysis).
			ModelContext(m.path, modelType).
			Context("status_code", status).
			Context("frames", frameCount).
			Context("channels", channelCount).
			Timing("tflite-invoke", time.Since(start)).
			Build()
	}

	output := m.interpreter.GetOutputTensor(0)
	if output == nil {
		return nil, m.inferError(fmt.Errorf("cannot get output tensor"))
	}
	result := make([]float32, len(output.Float32s()))
	copy(result, output.Float32s())
	return result, nil
}

// resize reshapes input 0 when the window shape changes.
func (m *Module) resize(channels, frames int) error {
	if channels == m.channels && frames == m.frames {
		return nil
	}

	dims := []int32{int32(channels), int32(frames)} //nolint:gosec // G115: window sizes fit in int32
	if status := m.interpreter.ResizeInputTensor(0, dims); status != tflite.OK {
		return m.inferError(fmt.Errorf("resize input tensor to %v failed: %v", dims, status))
	}
	if status := m.interpreter.AllocateTensors(); status != tflite.OK {
		return m.inferError(fmt.Errorf("tensor allocation after resize failed: %v", status))
	}

	m.channels, m.frames = channels, frames
	GetLogger().Debug("input tensor resized",
		logger.Int("channels", channels),
		logger.Int("frames", frames))
	return nil
}

func (m *Module) setSampleRate(sampleRate int) error {
	rate := m.interpreter.GetInputTensor(1)
	if rate == nil {
		return m.inferError(fmt.Errorf("cannot get sample rate tensor"))
	}
	switch rate.Type() {
	case tflite.Int32:
		if v := rate.Int32s(); len(v) > 0 {
			v[0] = int32(sampleRate) //nolint:gosec // G115: sample rates fit in int32
			return nil
		}
	case tflite.Float32:
		if v := rate.Float32s(); len(v) > 0 {
			v[0] = float32(sampleRate)
			return nil
		}
	}
	return m.inferError(fmt.Errorf("unsupported sample rate tensor type %v", rate.Type()))
}

func (m *Module) inferError(err error) error {
	return errors.New(err).
		Component("features").
		Category(errors.CategoryAudioAnalysis).
		ModelContext(m.path, modelType).
		Build()
}

// Close releases the interpreter and model.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.interpreter.Delete()
	m.options.Delete()
	m.model.Delete()
	return nil
}

// GetLogger returns the logger for the TFLite feature module.
func GetLogger() logger.Logger {
	return logger.Global().Module("features").Module("tflite")
}
