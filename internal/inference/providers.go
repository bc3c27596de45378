package inference

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Provider names an ONNX Runtime execution provider.
type Provider string

// Supported execution providers.
const (
	ProviderCPU      Provider = "cpu"
	ProviderCUDA     Provider = "cuda"
	ProviderCoreML   Provider = "coreml"
	ProviderOpenVINO Provider = "openvino"
)

// ParseProvider parses a provider name. The empty string means CPU.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return ProviderCPU, nil
	case ProviderCPU, ProviderCUDA, ProviderCoreML, ProviderOpenVINO:
		return p, nil
	default:
		return "", errors.Errorf("unknown execution provider %q", name)
	}
}

// appendProvider enables the configured execution provider. CPU needs nothing.
func appendProvider(options *ort.SessionOptions, cfg Config) error {
	switch cfg.Provider {
	case "", ProviderCPU:
		return nil

	case ProviderCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "create cuda options")
		}
		defer cuda.Destroy()

		if err := cuda.Update(map[string]string{"device_id": strconv.Itoa(cfg.DeviceID)}); err != nil {
			return errors.Wrap(err, "configure cuda")
		}
		return errors.Wrap(options.AppendExecutionProviderCUDA(cuda), "enable cuda")

	case ProviderCoreML:
		return errors.Wrap(options.AppendExecutionProviderCoreML(0), "enable coreml")

	case ProviderOpenVINO:
		return errors.Wrap(options.AppendExecutionProviderOpenVINO(map[string]string{
			"device_type": "CPU",
		}), "enable openvino")

	default:
		return errors.Errorf("unknown execution provider %q", cfg.Provider)
	}
}
