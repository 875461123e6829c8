package cleanupinvalidtokens

import "time"

type Config struct {
	Timeout     time.Duration
	InputSchema map[string]interface{}
}

func LoadConfig(inputSchema map[string]interface{}) *Config {
	return &Config{
		Timeout:     600 * time.Second,
		InputSchema: inputSchema,
	}
}
