package opencv

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"hoopsight/config"
	"hoopsight/internal/core/pose"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// DNN-Backend-Typen für die Konfiguration
const (
	BackendDefault = "default"
	BackendCUDA    = "cuda"
	BackendOpenCL  = "opencl"
	TargetCPU      = "cpu"
	TargetCUDA     = "cuda"
	TargetOpenCL   = "opencl"
)

// PoseModel führt ein RTMPose-ONNX-Modell mit SimCC-Ausgabe über OpenCV DNN aus
type PoseModel struct {
	net     gocv.Net
	outputs []string
	mutex   sync.Mutex // gocv.Net ist nicht threadsicher
}

// NewPoseModel lädt das Modell und wählt Backend und Target
func NewPoseModel(cfg config.PoseConfig) (*PoseModel, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model file %s: %v", pose.ErrModelUnavailable, cfg.ModelPath, err)
	}

	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("%w: failed to read network from %s", pose.ErrModelUnavailable, cfg.ModelPath)
	}

	backend, target := getGPUBackend(cfg)
	if err := net.SetPreferableBackend(backend); err != nil {
		log.Warnf("Failed to set DNN backend %v: %v", backend, err)
	}
	if err := net.SetPreferableTarget(target); err != nil {
		log.Warnf("Failed to set DNN target %v: %v", target, err)
	}

	log.WithField("component", "opencv").Infof("Pose model loaded from %s (outputs %s, %s)", cfg.ModelPath, cfg.OutputX, cfg.OutputY)

	return &PoseModel{
		net:     net,
		outputs: []string{cfg.OutputX, cfg.OutputY},
	}, nil
}

// Infer führt das Netz auf einem NCHW-Tensor aus und liefert die beiden SimCC-Verteilungen
func (m *PoseModel) Infer(ctx context.Context, input pose.Tensor) (pose.SimCC, error) {
	if err := ctx.Err(); err != nil {
		return pose.SimCC{}, err
	}
	if len(input.Data) == 0 {
		return pose.SimCC{}, fmt.Errorf("empty input tensor")
	}

	raw := unsafe.Slice((*byte)(unsafe.Pointer(&input.Data[0])), len(input.Data)*4)
	blob, err := gocv.NewMatWithSizesFromBytes(input.Shape[:], gocv.MatTypeCV32F, raw)
	if err != nil {
		return pose.SimCC{}, fmt.Errorf("failed to create input blob: %w", err)
	}
	defer blob.Close()

	m.mutex.Lock()
	if m.net.Empty() {
		m.mutex.Unlock()
		return pose.SimCC{}, pose.ErrModelUnavailable
	}
	m.net.SetInput(blob, "")
	outs := m.net.ForwardLayers(m.outputs)
	m.mutex.Unlock()
	runtime.KeepAlive(input.Data)

	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()

	if len(outs) != 2 {
		return pose.SimCC{}, fmt.Errorf("%w: expected 2 outputs, got %d", pose.ErrMalformedOutput, len(outs))
	}

	x, err := toRows(outs[0])
	if err != nil {
		return pose.SimCC{}, err
	}
	y, err := toRows(outs[1])
	if err != nil {
		return pose.SimCC{}, err
	}
	return pose.SimCC{X: x, Y: y}, nil
}

// toRows zerlegt einen [1, K, bins]-Ausgabetensor in K Zeilen
func toRows(mat gocv.Mat) ([][]float32, error) {
	sizes := mat.Size()
	if len(sizes) < 2 {
		return nil, fmt.Errorf("%w: output has %d dimensions", pose.ErrMalformedOutput, len(sizes))
	}
	rows, bins := sizes[len(sizes)-2], sizes[len(sizes)-1]

	data, err := mat.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pose.ErrMalformedOutput, err)
	}
	if len(data) < rows*bins {
		return nil, fmt.Errorf("%w: output has %d values, expected %d", pose.ErrMalformedOutput, len(data), rows*bins)
	}

	// Kopieren, da data auf den Speicher der Mat zeigt
	out := make([][]float32, rows)
	for r := 0; r < rows; r++ {
		row := make([]float32, bins)
		copy(row, data[r*bins:(r+1)*bins])
		out[r] = row
	}
	return out, nil
}

// Close gibt das Netz frei
func (m *PoseModel) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.net.Close()
}

// getGPUBackend gibt das zu verwendende Backend und Target basierend auf der Konfiguration zurück
func getGPUBackend(cfg config.PoseConfig) (gocv.NetBackendType, gocv.NetTargetType) {
	backend := gocv.NetBackendDefault
	target := gocv.NetTargetCPU

	if cfg.Backend == "" || cfg.Backend == BackendDefault {
		if cfg.UseGPU {
			if haveNvidiaGPU() {
				log.Info("NVIDIA GPU detected, using CUDA backend")
				return gocv.NetBackendCUDA, gocv.NetTargetCUDA
			}
			log.Warn("GPU usage enabled but no supported GPU found, using CPU")
		}
		return backend, target
	}

	// Explizite Backend-Konfiguration
	switch cfg.Backend {
	case BackendCUDA:
		backend = gocv.NetBackendCUDA
	case BackendOpenCL:
		backend = gocv.NetBackendOpenCV
	default:
		log.Warnf("Unknown backend '%s' configured, using default", cfg.Backend)
	}

	// Explizite Target-Konfiguration
	switch cfg.Target {
	case TargetCUDA:
		target = gocv.NetTargetCUDA
	case TargetOpenCL:
		target = gocv.NetTargetFP32 // entspricht DNN_TARGET_OPENCL
	case TargetCPU, "":
		target = gocv.NetTargetCPU
	default:
		log.Warnf("Unknown target '%s' configured, using CPU", cfg.Target)
	}

	return backend, target
}

// haveNvidiaGPU prüft, ob eine NVIDIA-GPU verfügbar ist
func haveNvidiaGPU() bool {
	// NVIDIA-Docker-Umgebungsvariablen
	if os.Getenv("NVIDIA_VISIBLE_DEVICES") != "" || os.Getenv("NVIDIA_DRIVER_CAPABILITIES") != "" {
		return true
	}

	for _, path := range []string{
		"/usr/local/cuda/lib64/libcudart.so",
		"/usr/lib/x86_64-linux-gnu/libcuda.so",
		"/usr/lib/libcuda.so",
		"/usr/bin/nvidia-smi",
	} {
		if _, err := os.Stat(path); err == nil {
			log.Debugf("CUDA indicator found: %s", path)
			return true
		}
	}
	return false
}
