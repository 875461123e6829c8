package sendpushnotification

import "time"

type Config struct {
	Timeout     time.Duration
	InputSchema map[string]interface{}
}

func LoadConfig(inputSchema map[string]interface{}) *Config {
	return &Config{
		Timeout:     120 * time.Second,
		InputSchema: inputSchema,
	}
}
