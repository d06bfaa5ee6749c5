package face

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"gocv.io/x/gocv"

	"github.com/presensia/facegate/pkg/logging"
)

// DNNModel runs an ONNX embedding network (MobileFaceNet-style, 112x112
// input, 192-d output) through the OpenCV DNN runtime. It satisfies Model.
type DNNModel struct {
	modelPath string
	net       gocv.Net
	loaded    bool
}

// NewDNNModel creates a DNNModel for the network file at modelPath. The
// network is not loaded until Load is called.
func NewDNNModel(modelPath string) *DNNModel {
	return &DNNModel{modelPath: modelPath}
}

// Load reads the network and selects a backend, preferring CUDA and
// falling back to the CPU when it is not available.
func (m *DNNModel) Load() error {
	if m.loaded {
		return nil
	}

	log := logging.Component("dnn")

	if _, err := os.Stat(m.modelPath); err != nil {
		return fmt.Errorf("model file not found: %s", m.modelPath)
	}

	net := gocv.ReadNet(m.modelPath, "")
	if net.Empty() {
		return fmt.Errorf("failed to read network from %s", m.modelPath)
	}

	cuda := net.SetPreferableBackend(gocv.NetBackendCUDA) == nil &&
		net.SetPreferableTarget(gocv.NetTargetCUDA) == nil
	if cuda {
		log.Info("using CUDA backend")
	} else {
		if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
			log.WithError(err).Debug("default backend selection failed")
		}
		if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
			log.WithError(err).Debug("CPU target selection failed")
		}
	}

	m.net = net
	m.loaded = true
	log.Infof("loaded embedding network: %s", m.modelPath)
	return nil
}

// Infer feeds a [1,InputSize,InputSize,3] tensor through the network and
// returns the flat embedding vector. The DNN runtime wants channel-first
// input, so the tensor is transposed to [1,3,InputSize,InputSize] first.
func (m *DNNModel) Infer(input []float32) ([]float32, error) {
	if !m.loaded {
		return nil, fmt.Errorf("network not loaded")
	}
	if len(input) != InputSize*InputSize*3 {
		return nil, fmt.Errorf("bad input length %d, want %d", len(input), InputSize*InputSize*3)
	}

	blob, err := gocv.NewMatWithSizesFromBytes(
		[]int{1, 3, InputSize, InputSize},
		gocv.MatTypeCV32F,
		nhwcToNCHWBytes(input),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build input blob: %w", err)
	}
	defer blob.Close()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	total := output.Total()
	vector := make([]float32, total)
	for i := 0; i < total; i++ {
		vector[i] = output.GetFloatAt(0, i)
	}
	return vector, nil
}

// Close releases the network.
func (m *DNNModel) Close() error {
	if m.loaded {
		m.loaded = false
		return m.net.Close()
	}
	return nil
}

// nhwcToNCHWBytes transposes an interleaved-channel tensor to planar
// channel order and serializes it as little-endian float32 bytes.
func nhwcToNCHWBytes(input []float32) []byte {
	pixels := InputSize * InputSize
	data := make([]byte, len(input)*4)
	for p := 0; p < pixels; p++ {
		for c := 0; c < 3; c++ {
			offset := (c*pixels + p) * 4
			binary.LittleEndian.PutUint32(data[offset:], math.Float32bits(input[p*3+c]))
		}
	}
	return data
}
