package config

import (
	"fmt"
	"os"
)

func Template() string {
	return producerTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(producerTemplate), 0o600)
}

const producerTemplate = `# qosctl producer configuration
endpoint = "ipc:///tmp/control_qos_actions"
codec = "protobuf"
producer_id = ""
send_queue = 1000
linger = "1s"
send_timeout = "5s"
warmup = "500ms"
metrics_addr = ""
warn_advisory = true
`
